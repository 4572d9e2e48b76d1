package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/midiroll/pkg/heatmap"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatRoll    Format = "roll"
	FormatNPY     Format = "npy"
	FormatPNG     Format = "png"
	FormatWAV     Format = "wav"
	FormatUnknown Format = "unknown"
)

// Magic numbers used for content sniffing
var (
	midiMagic = []byte("MThd")
	rollMagic = []byte("PROL")
	npyMagic  = []byte("\x93NUMPY")
	pngMagic  = []byte("\x89PNG")
	riffMagic = []byte("RIFF")
)

// ErrUnsupportedConversion is returned when no path exists between formats
var ErrUnsupportedConversion = errors.New("unsupported conversion")

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".roll":
		return FormatRoll
	case ".npy":
		return FormatNPY
	case ".png":
		return FormatPNG
	case ".wav":
		return FormatWAV
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, midiMagic):
		return FormatMIDI
	case bytes.HasPrefix(data, rollMagic):
		return FormatRoll
	case bytes.HasPrefix(data, npyMagic):
		return FormatNPY
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, riffMagic):
		return FormatWAV
	default:
		return FormatUnknown
	}
}

// Extension returns the canonical file extension for f
func (f Format) Extension() string {
	switch f {
	case FormatMIDI:
		return ".mid"
	case FormatUnknown:
		return ""
	default:
		return "." + string(f)
	}
}

// IsMatrix reports whether f stores a piano-roll matrix
func (f Format) IsMatrix() bool {
	return f == FormatRoll || f == FormatNPY
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) (*pianoroll.Report, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return nil, errors.New("cannot determine output format from filename")
	}

	outputData, report, err := c.Convert(data, inputFormat, outputFormat)
	if err != nil {
		return report, fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return report, fmt.Errorf("failed to write output file: %w", err)
	}

	c.logger.Info("converted", "input", inputPath, "output", outputPath)
	return report, nil
}

// Convert converts in-memory data between formats. The report is non-nil
// whenever MIDI notes were encoded.
func (c *Converter) Convert(data []byte, from, to Format) ([]byte, *pianoroll.Report, error) {
	switch {
	case from == FormatMIDI && to.IsMatrix():
		return c.MIDIToFormat(data, to)
	case from == FormatMIDI && to == FormatMIDI:
		return c.RoundTrip(data)
	case from == FormatMIDI && to == FormatPNG:
		m, report, err := c.MIDIToMatrix(data)
		if err != nil {
			return nil, report, err
		}
		out, err := c.Heatmap(m)
		return out, report, err
	case from.IsMatrix() && to == FormatMIDI:
		out, err := c.FormatToMIDI(data, from)
		return out, nil, err
	case from.IsMatrix() && to == FormatPNG:
		m, _, err := c.ReadMatrix(data, from)
		if err != nil {
			return nil, nil, err
		}
		out, err := c.Heatmap(m)
		return out, nil, err
	case from.IsMatrix() && to.IsMatrix():
		m, g, err := c.ReadMatrix(data, from)
		if err != nil {
			return nil, nil, err
		}
		out, err := c.WriteMatrix(m, g, to)
		return out, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
	}
}

// MIDIToMatrix parses MIDI data and encodes its notes on the grid
func (c *Converter) MIDIToMatrix(midiData []byte) (*pianoroll.Matrix, *pianoroll.Report, error) {
	notes, err := NewMIDIConverter().ParseMIDI(midiData)
	if err != nil {
		return nil, nil, err
	}
	m, report, err := pianoroll.Encode(notes, c.grid)
	if err != nil {
		return nil, nil, err
	}
	c.logReport(report)
	return m, report, nil
}

// MatrixToMIDI decodes a matrix encoded on g into MIDI data
func (c *Converter) MatrixToMIDI(m *pianoroll.Matrix, g pianoroll.Grid) ([]byte, error) {
	notes, err := pianoroll.Decode(m, g)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("decoded matrix", "notes", len(notes), "grid", g)
	return NewMIDIConverter().GenerateMIDI(notes)
}

// MIDIToFormat converts MIDI data to a matrix interchange format
func (c *Converter) MIDIToFormat(midiData []byte, f Format) ([]byte, *pianoroll.Report, error) {
	m, report, err := c.MIDIToMatrix(midiData)
	if err != nil {
		return nil, report, err
	}
	out, err := c.WriteMatrix(m, c.grid, f)
	return out, report, err
}

// FormatToMIDI converts matrix interchange data to MIDI
func (c *Converter) FormatToMIDI(data []byte, f Format) ([]byte, error) {
	m, g, err := c.ReadMatrix(data, f)
	if err != nil {
		return nil, err
	}
	return c.MatrixToMIDI(m, g)
}

// ReadMatrix unmarshals matrix data with the codec registered for f
func (c *Converter) ReadMatrix(data []byte, f Format) (*pianoroll.Matrix, pianoroll.Grid, error) {
	codec, ok := c.codecs[f]
	if !ok {
		return nil, pianoroll.Grid{}, fmt.Errorf("no codec registered for %s", f)
	}
	return codec.Unmarshal(data, c.grid)
}

// WriteMatrix marshals m with the codec registered for f
func (c *Converter) WriteMatrix(m *pianoroll.Matrix, g pianoroll.Grid, f Format) ([]byte, error) {
	codec, ok := c.codecs[f]
	if !ok {
		return nil, fmt.Errorf("no codec registered for %s", f)
	}
	return codec.Marshal(m, g)
}

// RoundTrip encodes MIDI onto the grid and decodes it back to MIDI so the
// quantized result can be auditioned
func (c *Converter) RoundTrip(midiData []byte) ([]byte, *pianoroll.Report, error) {
	m, report, err := c.MIDIToMatrix(midiData)
	if err != nil {
		return nil, report, err
	}
	out, err := c.MatrixToMIDI(m, c.grid)
	return out, report, err
}

// Heatmap renders m as PNG bytes
func (c *Converter) Heatmap(m *pianoroll.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	if err := heatmap.Encode(&buf, m, c.heatmap); err != nil {
		return nil, fmt.Errorf("failed to render heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Converter) logReport(r *pianoroll.Report) {
	for _, w := range r.Warnings {
		c.logger.Warn("skipped note", "index", w.Index, "pitch", w.Note.Pitch, "start", w.Note.Start, "err", w.Err)
	}
	c.logger.Debug("encoded notes", "encoded", r.Encoded, "drums", r.Drums, "skipped", r.Skipped(), "grid", c.grid)
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"midi -> roll",
		"midi -> npy",
		"midi -> png",
		"midi -> midi",
		"roll -> midi",
		"roll -> npy",
		"roll -> png",
		"npy -> midi",
		"npy -> roll",
		"npy -> png",
	}
}
