// Package magic generates magic bitboard attack tables for sliding pieces.
//
// For each square a 64-bit multiplier maps the occupied squares inside a
// relevant mask onto a dense index into a fixed-size attack table:
//
//	index = ((occupied & mask) * magic) >> (64 - bits)
//
// The generator derives the masks, enumerates every occupancy subset,
// computes the exact attack sets by ray casting, and searches random
// sparse multipliers until one hashes all subsets consistently.
package magic

import "github.com/hailam/magicgen/internal/board"

// RelevantMask returns the relevant occupancy mask for a slider on sq.
// Excludes the last square of every ray, since a piece there cannot
// block anything behind it.
func RelevantMask(sq board.Square, s board.Slider) board.Bitboard {
	var mask board.Bitboard
	for _, d := range s.Directions() {
		rankEdge, fileEdge := d.Edges()
		cur := board.SquareBB(sq)
		for step := 0; step < 6; step++ {
			next := cur.Shift(d)
			if next == 0 {
				break
			}
			// The next square is the final one on the ray: drop it.
			if next&rankEdge != 0 {
				break
			}
			if next&fileEdge != 0 {
				break
			}
			mask |= next
			cur = next
		}
	}
	return mask
}

// RelevantBits returns the popcount of the relevant mask.
func RelevantBits(sq board.Square, s board.Slider) int {
	return RelevantMask(sq, s).PopCount()
}
