// Package render draws bitboards as board diagrams, used to inspect masks
// and attack sets.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	svg "github.com/ajstarks/svgo"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	"github.com/hailam/magicgen/internal/board"
)

// Options controls diagram appearance.
type Options struct {
	SquareSize  int     // Pixels per square in the SVG
	Labels      bool    // Draw file and rank labels (SVG only)
	PNGSize     int     // Output edge length for PNG
	RenderScale float64 // Oversampling factor before downscaling
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		SquareSize:  48,
		Labels:      true,
		PNGSize:     256,
		RenderScale: 3.0, // Render at 3x resolution for sharp scaling
	}
}

// Square colors
const (
	lightFill  = "fill:#f0d9b5"
	darkFill   = "fill:#b58863"
	markFill   = "fill:#3b82f6;fill-opacity:0.75"
	originFill = "fill:#dc2626"
	labelStyle = "font-family:sans-serif;font-size:10px;fill:#333"
)

// SVG writes bb as an 8x8 board with set squares highlighted. origin, if
// valid, is marked with a dot.
func SVG(w io.Writer, bb board.Bitboard, origin board.Square, opts Options) {
	sz := opts.SquareSize
	if sz <= 0 {
		sz = DefaultOptions().SquareSize
	}
	edge := 8 * sz

	canvas := svg.New(w)
	canvas.Startview(edge, edge, 0, 0, edge, edge)

	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			sq := board.NewSquare(file, rank)
			x, y := file*sz, (7-rank)*sz

			fill := darkFill
			if (file+rank)%2 == 1 {
				fill = lightFill
			}
			canvas.Rect(x, y, sz, sz, fill)
			if bb.IsSet(sq) {
				canvas.Rect(x+sz/8, y+sz/8, sz-sz/4, sz-sz/4, markFill)
			}
			if sq == origin {
				canvas.Circle(x+sz/2, y+sz/2, sz/4, originFill)
			}
		}
	}

	if opts.Labels {
		for i := 0; i < 8; i++ {
			canvas.Text(i*sz+2, edge-2, string(rune('a'+i)), labelStyle)
			canvas.Text(2, (7-i)*sz+11, string(rune('1'+i)), labelStyle)
		}
	}

	canvas.End()
}

// Image rasterizes the SVG diagram of bb.
func Image(bb board.Bitboard, origin board.Square, opts Options) (image.Image, error) {
	def := DefaultOptions()
	if opts.PNGSize <= 0 {
		opts.PNGSize = def.PNGSize
	}
	if opts.RenderScale < 1 {
		opts.RenderScale = def.RenderScale
	}
	opts.Labels = false // oksvg does not render text

	var buf bytes.Buffer
	SVG(&buf, bb, origin, opts)

	icon, err := oksvg.ReadIconStream(&buf, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse diagram: %w", err)
	}

	// Render at higher resolution, then scale down.
	renderSize := int(float64(opts.PNGSize) * opts.RenderScale)
	icon.SetTarget(0, 0, float64(renderSize), float64(renderSize))

	rgba := image.NewRGBA(image.Rect(0, 0, renderSize, renderSize))
	scanner := rasterx.NewScannerGV(renderSize, renderSize, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(renderSize, renderSize, scanner)
	icon.Draw(raster, 1.0)

	dst := image.NewRGBA(image.Rect(0, 0, opts.PNGSize, opts.PNGSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), rgba, rgba.Bounds(), draw.Src, nil)
	return dst, nil
}

// PNG writes the rasterized diagram of bb to w.
func PNG(w io.Writer, bb board.Bitboard, origin board.Square, opts Options) error {
	img, err := Image(bb, origin, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
