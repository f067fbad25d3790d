package magic

import "github.com/hailam/magicgen/internal/board"

// Entry holds the accepted magic bitboard data for a single square.
type Entry struct {
	Square   board.Square
	Slider   board.Slider
	Mask     board.Bitboard   // Relevant occupancy mask (excludes edges)
	Magic    uint64           // Magic multiplier
	Bits     uint8            // Relevant bit count; shift is 64 - Bits
	Table    []board.Bitboard // Attack table, Slider.TableSize() entries
	Attempts uint64           // Candidates drawn before acceptance
}

// Shift returns the right shift applied to the hashed occupancy.
func (e *Entry) Shift() uint8 {
	return 64 - e.Bits
}

// Index hashes an occupancy into the entry's attack table.
func (e *Entry) Index(occupied board.Bitboard) int {
	return hashIndex(occupied&e.Mask, e.Magic, e.Shift())
}

// Attacks returns the attack set for the given board occupancy.
func (e *Entry) Attacks(occupied board.Bitboard) board.Bitboard {
	return e.Table[e.Index(occupied)]
}

func hashIndex(occ board.Bitboard, magic uint64, shift uint8) int {
	return int((uint64(occ) * magic) >> shift)
}

// mapping is the index -> attack scratch space used while verifying
// candidates. A slot is live only when its tag equals the current
// generation, so starting a new attempt is a counter increment.
type mapping struct {
	gen     uint32
	tags    []uint32
	attacks []board.Bitboard
}

func newMapping(size int) *mapping {
	return &mapping{
		tags:    make([]uint32, size),
		attacks: make([]board.Bitboard, size),
	}
}

// reset invalidates every slot for the next attempt.
func (m *mapping) reset() {
	m.gen++
	if m.gen == 0 {
		// Counter wrapped: stale tags could alias, clear them once.
		clear(m.tags)
		m.gen = 1
	}
}

// record stores attack at idx, returning false if idx already holds a
// different attack set in this generation.
func (m *mapping) record(idx int, attack board.Bitboard) bool {
	if m.tags[idx] == m.gen {
		return m.attacks[idx] == attack
	}
	m.tags[idx] = m.gen
	m.attacks[idx] = attack
	return true
}

// build materializes the current generation into a dense table of size
// entries. Unrecorded slots stay empty.
func (m *mapping) build(size int) []board.Bitboard {
	table := make([]board.Bitboard, size)
	for i := 0; i < size && i < len(m.tags); i++ {
		if m.tags[i] == m.gen {
			table[i] = m.attacks[i]
		}
	}
	return table
}
