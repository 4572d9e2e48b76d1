package pianoroll

import (
	"fmt"
)

// Decode scans each pitch column and emits one note per maximal run of
// consecutive active steps.
//
// A run [i0..i1] becomes Start = i0*step, End = i1*step with the velocity
// of its first step. Encode writes end indices exclusively while Decode
// reports the last active step, so a round trip ends one step early. A
// single-step run decodes with Start == End.
//
// Notes are ordered by pitch, then onset.
func Decode(m *Matrix, g Grid) ([]Note, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrShapeMismatch)
	}
	if err := m.CheckShape(g); err != nil {
		return nil, err
	}
	if err := checkIntensity(m.Cells); err != nil {
		return nil, err
	}
	return decodeRuns(m, g), nil
}

// DecodeFlat decodes a step-major, pitch-minor flat array. The slice is
// not retained.
func DecodeFlat(flat []uint8, g Grid) ([]Note, error) {
	m, err := Reshape(flat, g)
	if err != nil {
		return nil, err
	}
	return decodeRuns(m, g), nil
}

// Reshape wraps a flat array as a matrix for the grid without copying.
// Cells above MaxVelocity are rejected with ErrInvalidIntensity.
func Reshape(flat []uint8, g Grid) (*Matrix, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(flat)%PitchCount != 0 {
		return nil, fmt.Errorf("%w: flat length %d is not a multiple of %d", ErrShapeMismatch, len(flat), PitchCount)
	}
	m := &Matrix{Steps: len(flat) / PitchCount, Pitches: PitchCount, Cells: flat}
	if err := m.CheckShape(g); err != nil {
		return nil, err
	}
	if err := checkIntensity(flat); err != nil {
		return nil, err
	}
	return m, nil
}

func checkIntensity(cells []uint8) error {
	for i, v := range cells {
		if v > MaxVelocity {
			return fmt.Errorf("%w: cell %d (step %d, pitch %d) holds %d", ErrInvalidIntensity, i, i/PitchCount, i%PitchCount, v)
		}
	}
	return nil
}

func decodeRuns(m *Matrix, g Grid) []Note {
	var notes []Note
	for pitch := 0; pitch < PitchCount; pitch++ {
		notes = appendRuns(notes, m, g, pitch)
	}
	return notes
}

func appendRuns(notes []Note, m *Matrix, g Grid, pitch int) []Note {
	runStart := -1
	prev := -1
	for s := 0; s < m.Steps; s++ {
		if m.Cells[s*m.Pitches+pitch] == 0 {
			continue
		}
		if runStart >= 0 && s != prev+1 {
			notes = append(notes, runNote(m, g, pitch, runStart, prev))
			runStart = -1
		}
		if runStart < 0 {
			runStart = s
		}
		prev = s
	}
	if runStart >= 0 {
		notes = append(notes, runNote(m, g, pitch, runStart, prev))
	}
	return notes
}

func runNote(m *Matrix, g Grid, pitch, first, last int) Note {
	return Note{
		Pitch:    pitch,
		Velocity: int(m.At(first, pitch)),
		Start:    g.TimeAt(first),
		End:      g.TimeAt(last),
	}
}
