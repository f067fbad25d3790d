package magic

import (
	"testing"

	"github.com/hailam/magicgen/internal/board"
)

func TestOccupanciesBijection(t *testing.T) {
	for _, s := range board.Sliders {
		for _, sq := range []board.Square{board.A1, board.D4, board.E5, board.H8, board.B7} {
			mask := RelevantMask(sq, s)
			occs := Occupancies(mask)

			if want := 1 << mask.PopCount(); len(occs) != want {
				t.Fatalf("%v %v: %d occupancies, want %d", s, sq, len(occs), want)
			}

			seen := make(map[board.Bitboard]int, len(occs))
			for i, occ := range occs {
				if occ&^mask != 0 {
					t.Errorf("%v %v: occupancy %d has bits outside mask", s, sq, i)
				}
				if j, dup := seen[occ]; dup {
					t.Errorf("%v %v: occupancy %d duplicates %d", s, sq, i, j)
				}
				seen[occ] = i
			}
		}
	}
}

func TestOccupancyEndpoints(t *testing.T) {
	mask := RelevantMask(board.D4, board.Rook)
	if occ := Occupancy(0, mask); occ != board.Empty {
		t.Errorf("index 0: got\n%v want empty", occ)
	}
	last := 1<<mask.PopCount() - 1
	if occ := Occupancy(last, mask); occ != mask {
		t.Errorf("index %d: got\n%v want full mask\n%v", last, occ, mask)
	}
}

func TestOccupancyBitOrder(t *testing.T) {
	// Rook on e4: mask squares in ascending order are
	// e2 e3 b4 c4 d4 f4 g4 e5 e6 e7. Index 13 = 0b1101 selects the
	// 1st, 3rd and 4th of them.
	mask := RelevantMask(board.E4, board.Rook)
	got := Occupancy(13, mask)
	want := board.SquareBB(board.E2) | board.SquareBB(board.B4) | board.SquareBB(board.C4)
	if got != want {
		t.Errorf("Occupancy(13, e4 rook mask) =\n%v want\n%v", got, want)
	}
}

func TestOccupancyEmptyMask(t *testing.T) {
	occs := Occupancies(board.Empty)
	if len(occs) != 1 || occs[0] != board.Empty {
		t.Errorf("Occupancies(empty) = %v, want [0]", occs)
	}
}
