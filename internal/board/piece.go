package board

import (
	"fmt"
	"strings"
)

// Direction is a single-step ray offset on the board.
type Direction int8

const (
	North     Direction = 8
	South     Direction = -8
	East      Direction = 1
	West      Direction = -1
	NorthEast Direction = 9
	NorthWest Direction = 7
	SouthEast Direction = -7
	SouthWest Direction = -9
)

// String returns the compass name of the direction.
func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	case West:
		return "W"
	case NorthEast:
		return "NE"
	case NorthWest:
		return "NW"
	case SouthEast:
		return "SE"
	case SouthWest:
		return "SW"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}

// Edges returns the outermost rank and file a ray in direction d runs into.
// Orthogonal directions touch a single edge, so one of the two is Empty.
func (d Direction) Edges() (rank, file Bitboard) {
	switch d {
	case North:
		return Rank8, Empty
	case South:
		return Rank1, Empty
	case East:
		return Empty, FileH
	case West:
		return Empty, FileA
	case NorthEast:
		return Rank8, FileH
	case NorthWest:
		return Rank8, FileA
	case SouthEast:
		return Rank1, FileH
	case SouthWest:
		return Rank1, FileA
	}
	return Empty, Empty
}

// Slider is a sliding piece type whose attacks are looked up via magics.
type Slider uint8

const (
	Rook Slider = iota
	Bishop
	NoSlider Slider = 2
)

// Sliders lists every slider in table order.
var Sliders = [2]Slider{Rook, Bishop}

var (
	rookDirections   = [4]Direction{North, South, East, West}
	bishopDirections = [4]Direction{NorthEast, NorthWest, SouthEast, SouthWest}
)

// Directions returns the four ray directions of the slider.
func (s Slider) Directions() [4]Direction {
	if s == Bishop {
		return bishopDirections
	}
	return rookDirections
}

// MaxBits returns the largest relevant-occupancy bit count on any square.
func (s Slider) MaxBits() int {
	if s == Bishop {
		return 9
	}
	return 12
}

// TableSize returns the fixed number of attack entries per square
// (4096 for rooks, 512 for bishops).
func (s Slider) TableSize() int {
	return 1 << s.MaxBits()
}

// IsValid returns true for Rook and Bishop.
func (s Slider) IsValid() bool {
	return s < NoSlider
}

// String returns the lowercase slider name.
func (s Slider) String() string {
	switch s {
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	default:
		return "none"
	}
}

// ParseSlider parses "rook" or "bishop" (case-insensitive, "r"/"b" accepted).
func ParseSlider(s string) (Slider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rook", "r":
		return Rook, nil
	case "bishop", "b":
		return Bishop, nil
	}
	return NoSlider, fmt.Errorf("invalid slider: %q", s)
}
