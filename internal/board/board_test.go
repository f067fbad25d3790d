package board

import "testing"

func TestShiftDoesNotWrap(t *testing.T) {
	tests := []struct {
		name string
		bb   Bitboard
		d    Direction
		want Bitboard
	}{
		{"h4 east", SquareBB(H4), East, Empty},
		{"a4 west", SquareBB(A4), West, Empty},
		{"h4 northeast", SquareBB(H4), NorthEast, Empty},
		{"a4 northwest", SquareBB(A4), NorthWest, Empty},
		{"h4 southeast", SquareBB(H4), SouthEast, Empty},
		{"a4 southwest", SquareBB(A4), SouthWest, Empty},
		{"a8 north", SquareBB(A8), North, Empty},
		{"h1 south", SquareBB(H1), South, Empty},
		{"d4 north", SquareBB(D4), North, SquareBB(D5)},
		{"d4 southwest", SquareBB(D4), SouthWest, SquareBB(C3)},
		{"d4 southeast", SquareBB(D4), SouthEast, SquareBB(E3)},
		{"d4 northwest", SquareBB(D4), NorthWest, SquareBB(C5)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bb.Shift(tc.d); got != tc.want {
				t.Errorf("Shift(%v) =\n%v want\n%v", tc.d, got, tc.want)
			}
		})
	}
}

func TestDirectionEdges(t *testing.T) {
	for _, s := range Sliders {
		for _, d := range s.Directions() {
			rank, file := d.Edges()
			if rank|file == Empty {
				t.Errorf("%v has no edge", d)
			}
			// Stepping from the edge leaves the board.
			for sq := A1; sq <= H8; sq++ {
				if (rank|file).IsSet(sq) && SquareBB(sq).Shift(d) != Empty {
					t.Errorf("%v: %v is on the edge but can still step", d, sq)
				}
			}
		}
	}
}

func TestSliderDirections(t *testing.T) {
	for _, d := range Rook.Directions() {
		if d != North && d != South && d != East && d != West {
			t.Errorf("rook direction %v is not orthogonal", d)
		}
	}
	for _, d := range Bishop.Directions() {
		if d == North || d == South || d == East || d == West {
			t.Errorf("bishop direction %v is not diagonal", d)
		}
	}
	if Rook.TableSize() != 4096 || Bishop.TableSize() != 512 {
		t.Errorf("table sizes %d/%d, want 4096/512", Rook.TableSize(), Bishop.TableSize())
	}
}

func TestParseSlider(t *testing.T) {
	for in, want := range map[string]Slider{"rook": Rook, "Bishop": Bishop, "r": Rook, " b ": Bishop} {
		got, err := ParseSlider(in)
		if err != nil || got != want {
			t.Errorf("ParseSlider(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSlider("knight"); err == nil {
		t.Error("ParseSlider(knight) should fail")
	}
}

func TestSquares(t *testing.T) {
	bb := SquareBB(A1) | SquareBB(E4) | SquareBB(H8)
	got := bb.Squares()
	want := []Square{A1, E4, H8}
	if len(got) != len(want) {
		t.Fatalf("Squares() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Squares()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if bb.LSB() != A1 || bb.PopCount() != 3 {
		t.Errorf("LSB/PopCount = %v/%d", bb.LSB(), bb.PopCount())
	}
	if Empty.LSB() != NoSquare || len(Empty.Squares()) != 0 {
		t.Error("Empty board should have no squares")
	}
}

func TestParseSquare(t *testing.T) {
	sq, err := ParseSquare("e4")
	if err != nil || sq != E4 || sq.String() != "e4" {
		t.Errorf("ParseSquare(e4) = %v, %v", sq, err)
	}
	if sq.File() != 4 || sq.Rank() != 3 || int(sq) != 28 {
		t.Errorf("e4 file/rank/index = %d/%d/%d", sq.File(), sq.Rank(), int(sq))
	}
	if _, err := ParseSquare("i9"); err == nil {
		t.Error("ParseSquare(i9) should fail")
	}
}
