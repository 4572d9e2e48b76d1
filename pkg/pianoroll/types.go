package pianoroll

import (
	"fmt"
	"sort"
)

// Velocity bounds for a sounding note. Zero is reserved for silence.
const (
	MinVelocity = 1
	MaxVelocity = 127
)

// Note is a single timed note event
type Note struct {
	Pitch    int     // MIDI note number (0-127)
	Velocity int     // intensity (1-127)
	Start    float64 // onset in seconds
	End      float64 // offset in seconds
	Drum     bool    // came from a percussion channel
}

// Duration returns End - Start
func (n Note) Duration() float64 {
	return n.End - n.Start
}

func (n Note) String() string {
	return fmt.Sprintf("pitch=%d vel=%d %.3fs-%.3fs", n.Pitch, n.Velocity, n.Start, n.End)
}

// SortNotes orders notes by onset, then pitch. The sort is stable, so notes
// with equal onset and pitch keep their relative order; Encode applies notes
// in slice order and the later of two overlapping same-pitch notes wins.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

// Matrix is a dense piano roll. Cells are row-major: one row per time
// step, one column per pitch.
type Matrix struct {
	Steps   int
	Pitches int
	Cells   []uint8
}

// NewMatrix allocates a silent matrix for the grid
func NewMatrix(g Grid) *Matrix {
	steps := g.StepCount()
	return &Matrix{
		Steps:   steps,
		Pitches: PitchCount,
		Cells:   make([]uint8, steps*PitchCount),
	}
}

// At returns the intensity at step, pitch
func (m *Matrix) At(step, pitch int) uint8 {
	return m.Cells[step*m.Pitches+pitch]
}

// Set writes the intensity at step, pitch
func (m *Matrix) Set(step, pitch int, v uint8) {
	m.Cells[step*m.Pitches+pitch] = v
}

// Flat returns the cells in interchange order (step-major, pitch-minor).
// The slice aliases the matrix.
func (m *Matrix) Flat() []uint8 {
	return m.Cells
}

// Active returns the number of nonzero cells
func (m *Matrix) Active() int {
	n := 0
	for _, v := range m.Cells {
		if v > 0 {
			n++
		}
	}
	return n
}

// Column copies the time series for one pitch
func (m *Matrix) Column(pitch int) []uint8 {
	col := make([]uint8, m.Steps)
	for s := 0; s < m.Steps; s++ {
		col[s] = m.Cells[s*m.Pitches+pitch]
	}
	return col
}

// CheckShape verifies the matrix matches the grid
func (m *Matrix) CheckShape(g Grid) error {
	if m.Pitches != PitchCount {
		return fmt.Errorf("%w: %d pitch columns, want %d", ErrShapeMismatch, m.Pitches, PitchCount)
	}
	if m.Steps != g.StepCount() {
		return fmt.Errorf("%w: %d steps, grid %s has %d", ErrShapeMismatch, m.Steps, g, g.StepCount())
	}
	if len(m.Cells) != m.Steps*m.Pitches {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrShapeMismatch, len(m.Cells), m.Steps, m.Pitches)
	}
	return nil
}
