// Package formats provides piano-roll matrix interchange codecs
package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// .roll layout constants
const (
	RollVersion    = 0x01
	RollHeaderSize = 29 // magic(4) version(1) step(8) horizon(8) steps(4) pitches(4)

	rollVersionOffset  = 4
	rollStepOffset     = 5
	rollHorizonOffset  = 13
	rollStepsOffset    = 21
	rollPitchesOffset  = 25
	rollChecksumLength = 1
)

// RollMagic opens every .roll file
var RollMagic = [4]byte{'P', 'R', 'O', 'L'}

// Roll is a compact binary format that stores its own grid
type Roll struct{}

// NewRoll creates a .roll codec
func NewRoll() *Roll {
	return &Roll{}
}

// Name returns the codec name
func (r *Roll) Name() string {
	return "midiroll binary"
}

// Format returns converter.FormatRoll
func (r *Roll) Format() converter.Format {
	return converter.FormatRoll
}

// Marshal writes the header, the raw cells and an XOR checksum of the cells
func (r *Roll) Marshal(m *pianoroll.Matrix, g pianoroll.Grid) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil matrix")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := m.CheckShape(g); err != nil {
		return nil, err
	}

	data := make([]byte, RollHeaderSize+len(m.Cells)+rollChecksumLength)
	copy(data, RollMagic[:])
	data[rollVersionOffset] = RollVersion
	binary.LittleEndian.PutUint64(data[rollStepOffset:], math.Float64bits(g.TimeStep))
	binary.LittleEndian.PutUint64(data[rollHorizonOffset:], math.Float64bits(g.MaxTime))
	binary.LittleEndian.PutUint32(data[rollStepsOffset:], uint32(m.Steps))
	binary.LittleEndian.PutUint32(data[rollPitchesOffset:], uint32(m.Pitches))

	copy(data[RollHeaderSize:], m.Cells)
	data[len(data)-1] = checksum(m.Cells)

	return data, nil
}

// Unmarshal parses .roll data. The grid argument is ignored; the file's
// own grid is returned.
func (r *Roll) Unmarshal(data []byte, _ pianoroll.Grid) (*pianoroll.Matrix, pianoroll.Grid, error) {
	var g pianoroll.Grid
	if len(data) < RollHeaderSize+rollChecksumLength {
		return nil, g, errors.New("roll data too short")
	}
	if [4]byte(data[:4]) != RollMagic {
		return nil, g, errors.New("invalid roll: bad magic")
	}
	if v := data[rollVersionOffset]; v != RollVersion {
		return nil, g, fmt.Errorf("unsupported roll version %d", v)
	}

	g.TimeStep = math.Float64frombits(binary.LittleEndian.Uint64(data[rollStepOffset:]))
	g.MaxTime = math.Float64frombits(binary.LittleEndian.Uint64(data[rollHorizonOffset:]))
	if err := g.Validate(); err != nil {
		return nil, g, err
	}

	steps := int(binary.LittleEndian.Uint32(data[rollStepsOffset:]))
	pitches := int(binary.LittleEndian.Uint32(data[rollPitchesOffset:]))
	if pitches != pianoroll.PitchCount {
		return nil, g, fmt.Errorf("%w: %d pitches, want %d", pianoroll.ErrShapeMismatch, pitches, pianoroll.PitchCount)
	}
	if want := RollHeaderSize + steps*pitches + rollChecksumLength; len(data) != want {
		return nil, g, fmt.Errorf("%w: roll holds %d bytes, header implies %d", pianoroll.ErrShapeMismatch, len(data), want)
	}

	cells := make([]uint8, steps*pitches)
	copy(cells, data[RollHeaderSize:])
	if sum := checksum(cells); sum != data[len(data)-1] {
		return nil, g, fmt.Errorf("roll checksum mismatch: got %02X, want %02X", sum, data[len(data)-1])
	}
	m, err := pianoroll.Reshape(cells, g)
	if err != nil {
		return nil, g, err
	}
	return m, g, nil
}

// checksum XORs all cell bytes
func checksum(cells []uint8) uint8 {
	var sum uint8
	for _, v := range cells {
		sum ^= v
	}
	return sum
}
