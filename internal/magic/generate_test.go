package magic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hailam/magicgen/internal/board"
)

func TestGenerateRoundTrip(t *testing.T) {
	sliders := []board.Slider{board.Bishop, board.Rook}
	if testing.Short() {
		sliders = sliders[:1]
	}

	for _, s := range sliders {
		t.Run(s.String(), func(t *testing.T) {
			var done atomic.Int32
			set, err := Generate(context.Background(), s, GenerateOptions{
				Seed: 42,
				Progress: func(e *Entry, reused bool, _ time.Duration) {
					if reused {
						t.Errorf("%v: reported reused without known magics", e.Square)
					}
					done.Add(1)
				},
			})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if n := done.Load(); n != 64 {
				t.Errorf("progress called %d times, want 64", n)
			}

			for sq := board.A1; sq <= board.H8; sq++ {
				e := set.Entries[sq]
				for _, occ := range Occupancies(e.Mask) {
					if got, want := set.Attacks(sq, occ), SlidingAttacks(sq, s, occ); got != want {
						t.Fatalf("%v: occupancy %#016x:\n%v want\n%v", sq, uint64(occ), got, want)
					}
				}
			}
			if err := set.Verify(); err != nil {
				t.Errorf("Verify: %v", err)
			}
			t.Logf("%v: %d candidates in total", s, set.TotalAttempts())
		})
	}
}

func TestGenerateReproducible(t *testing.T) {
	a, err := Generate(context.Background(), board.Bishop, GenerateOptions{Seed: 9, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(context.Background(), board.Bishop, GenerateOptions{Seed: 9, Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	for sq := board.A1; sq <= board.H8; sq++ {
		if a.Entries[sq].Magic != b.Entries[sq].Magic {
			t.Errorf("%v: magic %#x vs %#x with same seed", sq, a.Entries[sq].Magic, b.Entries[sq].Magic)
		}
	}
}

func TestGenerateReusesKnownMagics(t *testing.T) {
	first, err := Generate(context.Background(), board.Bishop, GenerateOptions{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	var known [64]uint64
	for sq, e := range first.Entries {
		known[sq] = e.Magic
	}
	known[board.D4] = 0          // searched again
	known[board.E5] = ^uint64(0) // invalid, falls back to search

	var reused atomic.Int32
	second, err := Generate(context.Background(), board.Bishop, GenerateOptions{
		Seed:  2,
		Known: known,
		Progress: func(e *Entry, r bool, _ time.Duration) {
			if r {
				reused.Add(1)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := reused.Load(); n != 62 {
		t.Errorf("reused %d magics, want 62", n)
	}
	if second.Entries[board.A1].Magic != first.Entries[board.A1].Magic {
		t.Error("known magic for a1 not kept")
	}
	if second.Entries[board.E5].Magic == ^uint64(0) {
		t.Error("invalid known magic for e5 kept")
	}
	if err := second.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestGenerateExhausted(t *testing.T) {
	_, err := Generate(context.Background(), board.Rook, GenerateOptions{
		Seed:   1,
		Search: SearchOptions{MaxAttempts: 1},
	})
	if !errors.Is(err, ErrSearchExhausted) {
		t.Fatalf("err = %v, want ErrSearchExhausted", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, board.Rook, GenerateOptions{Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSetVerifyDetectsCorruption(t *testing.T) {
	set, err := Generate(context.Background(), board.Bishop, GenerateOptions{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	e := set.Entries[board.C1]
	e.Table[e.Index(board.Empty)] ^= board.SquareBB(board.H8)
	if err := set.Verify(); err == nil {
		t.Error("Verify accepted a corrupted table")
	}
}
