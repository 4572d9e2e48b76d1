// Package heatmap renders piano-roll matrices as PNG images for inspection
package heatmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/james-see/midiroll/pkg/pianoroll"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Options controls the image layout. Time runs left to right and pitch
// bottom to top.
type Options struct {
	MaxWidth   int         // time steps are bucketed to fit this many columns
	PitchScale int         // pixel rows per pitch
	Background color.Color // colour of silent cells
}

// DefaultOptions returns a plasma map over a black background
func DefaultOptions() Options {
	return Options{
		MaxWidth:   2048,
		PitchScale: 4,
		Background: colornames.Black,
	}
}

// matplotlib plasma at 0, .25, .5, .75 and 1
var plasmaStops = []colorful.Color{
	mustHex("#0d0887"),
	mustHex("#7e03a8"),
	mustHex("#cc4778"),
	mustHex("#f89540"),
	mustHex("#f0f921"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Plasma maps t in [0,1] onto the plasma colour map
func Plasma(t float64) colorful.Color {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(plasmaStops)-1)
	i := int(pos)
	if i >= len(plasmaStops)-1 {
		return plasmaStops[len(plasmaStops)-1]
	}
	frac := pos - float64(i)
	if frac == 0 {
		return plasmaStops[i]
	}
	return plasmaStops[i].BlendLab(plasmaStops[i+1], frac).Clamped()
}

// Render draws the matrix. Each output column shows the loudest cell of
// its bucket of time steps.
func Render(m *pianoroll.Matrix, opts Options) (*image.RGBA, error) {
	if m == nil || m.Steps == 0 {
		return nil, errors.New("empty matrix")
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultOptions().MaxWidth
	}
	if opts.PitchScale <= 0 {
		opts.PitchScale = 1
	}
	if opts.Background == nil {
		opts.Background = colornames.Black
	}

	bucket := (m.Steps + opts.MaxWidth - 1) / opts.MaxWidth
	width := (m.Steps + bucket - 1) / bucket
	height := m.Pitches * opts.PitchScale

	palette := buildPalette()
	bg := color.RGBAModel.Convert(opts.Background).(color.RGBA)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		first := x * bucket
		last := min(first+bucket, m.Steps)
		for p := 0; p < m.Pitches; p++ {
			var peak uint8
			for s := first; s < last; s++ {
				if v := m.At(s, p); v > peak {
					peak = v
				}
			}
			c := bg
			if peak > 0 {
				c = palette[min(int(peak), pianoroll.MaxVelocity)]
			}
			top := (m.Pitches - 1 - p) * opts.PitchScale
			for y := top; y < top+opts.PitchScale; y++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	return img, nil
}

func buildPalette() [pianoroll.MaxVelocity + 1]color.RGBA {
	var lut [pianoroll.MaxVelocity + 1]color.RGBA
	for v := range lut {
		r, g, b := Plasma(float64(v) / pianoroll.MaxVelocity).RGB255()
		lut[v] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return lut
}

// Encode renders the matrix as PNG into w
func Encode(w io.Writer, m *pianoroll.Matrix, opts Options) error {
	img, err := Render(m, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// WriteFile renders the matrix into a PNG file
func WriteFile(path string, m *pianoroll.Matrix, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	if err := Encode(f, m, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render heatmap: %w", err)
	}
	return f.Close()
}
