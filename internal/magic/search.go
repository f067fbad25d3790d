package magic

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/hailam/magicgen/internal/board"
)

// ErrSearchExhausted is returned when no magic was accepted within
// SearchOptions.MaxAttempts candidates.
var ErrSearchExhausted = errors.New("magic search exhausted")

// Source supplies independent uniformly distributed 64-bit values.
// *math/rand/v2.Rand satisfies it.
type Source interface {
	Uint64() uint64
}

// SearchOptions bounds a magic search. The zero value searches until a
// magic is found or the context is done.
type SearchOptions struct {
	MaxAttempts uint64 // 0 means unlimited
}

// Candidates must spread the masked bits into the top byte at least this
// well before a full verification is attempted.
const minTopByteBits = 6

// Context is polled once per this many candidates.
const ctxCheckInterval = 1 << 10

// searcher holds the per-square state reused across candidates.
type searcher struct {
	sq      board.Square
	slider  board.Slider
	mask    board.Bitboard
	bits    uint8
	shift   uint8
	occs    []board.Bitboard
	attacks []board.Bitboard // attacks[i] belongs to occs[i]
	m       *mapping
}

func newSearcher(sq board.Square, s board.Slider) *searcher {
	mask := RelevantMask(sq, s)
	occs := Occupancies(mask)
	attacks := make([]board.Bitboard, len(occs))
	for i, occ := range occs {
		attacks[i] = SlidingAttacks(sq, s, occ)
	}
	bits := uint8(mask.PopCount())
	return &searcher{
		sq:      sq,
		slider:  s,
		mask:    mask,
		bits:    bits,
		shift:   64 - bits,
		occs:    occs,
		attacks: attacks,
		m:       newMapping(s.TableSize()),
	}
}

// verify reports whether magic hashes every occupancy consistently.
// It stops at the first conflicting index.
func (sr *searcher) verify(magic uint64) bool {
	sr.m.reset()
	for i, occ := range sr.occs {
		if !sr.m.record(hashIndex(occ, magic, sr.shift), sr.attacks[i]) {
			return false
		}
	}
	return true
}

func (sr *searcher) entry(magic uint64, attempts uint64) *Entry {
	return &Entry{
		Square:   sr.sq,
		Slider:   sr.slider,
		Mask:     sr.mask,
		Magic:    magic,
		Bits:     sr.bits,
		Table:    sr.m.build(sr.slider.TableSize()),
		Attempts: attempts,
	}
}

// candidate draws a sparse random multiplier.
func candidate(rng Source) uint64 {
	return rng.Uint64() & rng.Uint64() & rng.Uint64()
}

// wellMixed is the cheap pre-filter applied before full verification.
func wellMixed(mask board.Bitboard, magic uint64) bool {
	return bits.OnesCount64((uint64(mask)*magic)&0xFF00000000000000) >= minTopByteBits
}

// Search finds a magic for the slider on sq using candidates from rng.
// It loops until a candidate is accepted, opts.MaxAttempts candidates
// have been drawn (ErrSearchExhausted), or ctx is done.
func Search(ctx context.Context, sq board.Square, s board.Slider, rng Source, opts SearchOptions) (*Entry, error) {
	if !sq.IsValid() || !s.IsValid() {
		return nil, fmt.Errorf("search %v %v: invalid input", s, sq)
	}
	return newSearcher(sq, s).search(ctx, rng, opts)
}

func (sr *searcher) search(ctx context.Context, rng Source, opts SearchOptions) (*Entry, error) {
	var attempts uint64
	for {
		if opts.MaxAttempts > 0 && attempts >= opts.MaxAttempts {
			return nil, fmt.Errorf("%v %v after %d attempts: %w", sr.slider, sr.sq, attempts, ErrSearchExhausted)
		}
		if attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%v %v: %w", sr.slider, sr.sq, err)
			}
		}
		attempts++

		magic := candidate(rng)
		if !wellMixed(sr.mask, magic) {
			continue
		}
		if sr.verify(magic) {
			return sr.entry(magic, attempts), nil
		}
	}
}

// TryMagic verifies a known magic for the slider on sq and returns the
// resulting entry, or false if the magic produces a conflicting index.
func TryMagic(sq board.Square, s board.Slider, magic uint64) (*Entry, bool) {
	if !sq.IsValid() || !s.IsValid() {
		return nil, false
	}
	sr := newSearcher(sq, s)
	if !sr.verify(magic) {
		return nil, false
	}
	return sr.entry(magic, 0), true
}
