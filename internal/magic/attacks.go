package magic

import "github.com/hailam/magicgen/internal/board"

// SlidingAttacks computes slider attacks from sq by ray casting.
// Each ray runs to the board edge and stops early on the first occupied
// square, which is itself attacked.
func SlidingAttacks(sq board.Square, s board.Slider, occupied board.Bitboard) board.Bitboard {
	var attacks board.Bitboard
	for _, d := range s.Directions() {
		attacks |= ray(board.SquareBB(sq), d, occupied)
	}
	return attacks
}

func ray(from board.Bitboard, d board.Direction, occupied board.Bitboard) board.Bitboard {
	var attacks board.Bitboard
	for cur := from.Shift(d); cur != 0; cur = cur.Shift(d) {
		attacks |= cur
		if occupied&cur != 0 {
			break
		}
	}
	return attacks
}
