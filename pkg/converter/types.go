// Package converter moves piano rolls between MIDI files, matrix
// interchange formats and heat-map images
package converter

import (
	"github.com/charmbracelet/log"
	"github.com/james-see/midiroll/pkg/heatmap"
	"github.com/james-see/midiroll/pkg/logging"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// Codec serialises piano-roll matrices in one interchange format
type Codec interface {
	Name() string
	Format() Format
	Marshal(m *pianoroll.Matrix, g pianoroll.Grid) ([]byte, error)
	// Unmarshal returns the matrix and the grid it was encoded on. Formats
	// that do not carry a grid check the shape against g and return it.
	Unmarshal(data []byte, g pianoroll.Grid) (*pianoroll.Matrix, pianoroll.Grid, error)
}

// ConversionResult holds the result of converting one file
type ConversionResult struct {
	Input  string
	Output string
	Report *pianoroll.Report
	Error  error
}

// Converter handles format conversions on a fixed grid
type Converter struct {
	grid    pianoroll.Grid
	codecs  map[Format]Codec
	heatmap heatmap.Options
	logger  *log.Logger
}

// New creates a Converter for grid with the given matrix codecs
func New(grid pianoroll.Grid, codecs ...Codec) *Converter {
	c := &Converter{
		grid:    grid,
		codecs:  make(map[Format]Codec),
		heatmap: heatmap.DefaultOptions(),
		logger:  logging.Discard(),
	}
	for _, codec := range codecs {
		c.Register(codec)
	}
	return c
}

// GetGrid returns the current grid
func (c *Converter) GetGrid() pianoroll.Grid {
	return c.grid
}

// SetGrid sets the grid for conversion
func (c *Converter) SetGrid(grid pianoroll.Grid) {
	c.grid = grid
}

// Register adds or replaces the codec for its format
func (c *Converter) Register(codec Codec) {
	c.codecs[codec.Format()] = codec
}

// Codec returns the codec registered for f
func (c *Converter) Codec(f Format) (Codec, bool) {
	codec, ok := c.codecs[f]
	return codec, ok
}

// SetLogger routes encode warnings and progress to logger
func (c *Converter) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetHeatmapOptions changes PNG rendering
func (c *Converter) SetHeatmapOptions(opts heatmap.Options) {
	c.heatmap = opts
}
