package magic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/magicgen/internal/board"
)

// Set is the complete magic table for one slider, indexed by square.
type Set struct {
	Slider  board.Slider
	Entries [64]*Entry
}

// Attacks looks up the slider's attacks from sq for the given occupancy.
func (s *Set) Attacks(sq board.Square, occupied board.Bitboard) board.Bitboard {
	return s.Entries[sq].Attacks(occupied)
}

// TotalAttempts sums the candidates drawn across all squares.
func (s *Set) TotalAttempts() uint64 {
	var n uint64
	for _, e := range s.Entries {
		if e != nil {
			n += e.Attempts
		}
	}
	return n
}

// Verify checks that every square's table returns the ray-cast attack set
// for every subset of its mask.
func (s *Set) Verify() error {
	for sq := board.A1; sq <= board.H8; sq++ {
		e := s.Entries[sq]
		if e == nil {
			return fmt.Errorf("%v %v: missing entry", s.Slider, sq)
		}
		if e.Square != sq || e.Slider != s.Slider {
			return fmt.Errorf("%v %v: entry belongs to %v %v", s.Slider, sq, e.Slider, e.Square)
		}
		if want := RelevantMask(sq, s.Slider); e.Mask != want {
			return fmt.Errorf("%v %v: mask %#016x, want %#016x", s.Slider, sq, uint64(e.Mask), uint64(want))
		}
		if int(e.Bits) != e.Mask.PopCount() {
			return fmt.Errorf("%v %v: %d relevant bits, mask has %d", s.Slider, sq, e.Bits, e.Mask.PopCount())
		}
		if len(e.Table) != s.Slider.TableSize() {
			return fmt.Errorf("%v %v: table has %d entries, want %d", s.Slider, sq, len(e.Table), s.Slider.TableSize())
		}
		for _, occ := range Occupancies(e.Mask) {
			if got, want := s.Attacks(sq, occ), SlidingAttacks(sq, s.Slider, occ); got != want {
				return fmt.Errorf("%v %v: occupancy %#016x maps to %#016x, want %#016x",
					s.Slider, sq, uint64(occ), uint64(got), uint64(want))
			}
		}
	}
	return nil
}

// GenerateOptions configures Generate.
type GenerateOptions struct {
	// Seed makes the run reproducible. Each square derives its own
	// random stream from Seed and the square index.
	Seed uint64

	// Workers limits concurrent searches; <= 0 uses GOMAXPROCS.
	Workers int

	// Search is applied to every per-square search.
	Search SearchOptions

	// Known supplies previously found magics (0 = none). A known magic
	// is re-verified and the square is searched if it fails.
	Known [64]uint64

	// Progress, if set, is called once per finished square. Calls may
	// come from several goroutines at once.
	Progress func(e *Entry, reused bool, elapsed time.Duration)
}

// Generate finds magics for all 64 squares of the slider. Squares are
// searched independently in parallel; the first failure cancels the rest.
func Generate(ctx context.Context, s board.Slider, opts GenerateOptions) (*Set, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("generate: invalid slider %d", s)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	set := &Set{Slider: s}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for sq := board.A1; sq <= board.H8; sq++ {
		g.Go(func() error {
			start := time.Now()
			if known := opts.Known[sq]; known != 0 {
				if e, ok := TryMagic(sq, s, known); ok {
					set.Entries[sq] = e
					if opts.Progress != nil {
						opts.Progress(e, true, time.Since(start))
					}
					return nil
				}
			}

			rng := rand.New(rand.NewPCG(opts.Seed, uint64(s)<<8|uint64(sq)))
			e, err := Search(ctx, sq, s, rng, opts.Search)
			if err != nil {
				return err
			}
			set.Entries[sq] = e
			if opts.Progress != nil {
				opts.Progress(e, false, time.Since(start))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}
