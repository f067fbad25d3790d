package magic

import "github.com/hailam/magicgen/internal/board"

// Occupancy converts an index in [0, 2^popcount(mask)) to the subset of
// mask whose k-th lowest square is occupied exactly when bit k of index
// is set.
func Occupancy(index int, mask board.Bitboard) board.Bitboard {
	var occ board.Bitboard
	for i := 0; mask != 0; i++ {
		sq := mask.PopLSB()
		if index&(1<<i) != 0 {
			occ |= board.SquareBB(sq)
		}
	}
	return occ
}

// Occupancies enumerates every subset of mask in index order.
func Occupancies(mask board.Bitboard) []board.Bitboard {
	n := 1 << mask.PopCount()
	occs := make([]board.Bitboard, n)
	for i := range occs {
		occs[i] = Occupancy(i, mask)
	}
	return occs
}
