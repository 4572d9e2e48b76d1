package converter

import (
	"fmt"
	"os"

	"github.com/james-see/midiroll/pkg/pianoroll"
)

// LoadMatrix reads a matrix from a MIDI, .roll or .npy file. MIDI input
// is encoded on the converter's grid.
func (c *Converter) LoadMatrix(path string) (*pianoroll.Matrix, pianoroll.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pianoroll.Grid{}, fmt.Errorf("failed to read input file: %w", err)
	}

	f := DetectFormat(path)
	if f == FormatUnknown {
		f = DetectFormatFromContent(data)
	}

	switch {
	case f == FormatMIDI:
		m, _, err := c.MIDIToMatrix(data)
		return m, c.grid, err
	case f.IsMatrix():
		return c.ReadMatrix(data, f)
	default:
		return nil, pianoroll.Grid{}, fmt.Errorf("%s does not hold a piano roll", path)
	}
}

// SaveMatrix writes m to path in the format named by its extension
func (c *Converter) SaveMatrix(m *pianoroll.Matrix, g pianoroll.Grid, path string) error {
	f := DetectFormat(path)
	if !f.IsMatrix() {
		return fmt.Errorf("%w: cannot store a matrix as %s", ErrUnsupportedConversion, f)
	}
	data, err := c.WriteMatrix(m, g, f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
