// Package pianoroll converts between timed note events and a dense
// time-by-pitch intensity matrix.
package pianoroll

import (
	"fmt"
	"math"
)

// PitchCount is the number of matrix columns (the MIDI pitch space).
const PitchCount = 128

// Default grid: 1 ms steps over a 30 second horizon.
const (
	DefaultTimeStep = 0.001
	DefaultMaxTime  = 30.0
)

// MaxCells caps the matrix size a grid may describe: 2^28 cells, 256 MiB
// of intensities. The default grid needs 3.84M.
const MaxCells = 1 << 28

// quantEpsilon absorbs float representation error before truncation,
// so 30/0.001 yields 30000 steps and 0.010/0.001 yields index 10.
const quantEpsilon = 1e-9

// Grid is the quantization contract shared by Encode and Decode
type Grid struct {
	TimeStep float64 // seconds per step
	MaxTime  float64 // horizon in seconds
}

// DefaultGrid returns a 1 ms grid with a 30 second horizon
func DefaultGrid() Grid {
	return Grid{TimeStep: DefaultTimeStep, MaxTime: DefaultMaxTime}
}

// Validate reports ErrInvalidGridParameter for unusable grids
func (g Grid) Validate() error {
	if !(g.TimeStep > 0) || math.IsInf(g.TimeStep, 0) {
		return fmt.Errorf("%w: time step %v", ErrInvalidGridParameter, g.TimeStep)
	}
	if !(g.MaxTime > 0) || math.IsInf(g.MaxTime, 0) {
		return fmt.Errorf("%w: max time %v", ErrInvalidGridParameter, g.MaxTime)
	}
	steps := math.Floor(g.MaxTime/g.TimeStep + quantEpsilon)
	switch {
	case math.IsInf(steps, 0) || math.IsNaN(steps):
		return fmt.Errorf("%w: %v / %v is not a finite step count", ErrInvalidGridParameter, g.MaxTime, g.TimeStep)
	case steps < 1:
		return fmt.Errorf("%w: horizon %v shorter than one step of %v", ErrInvalidGridParameter, g.MaxTime, g.TimeStep)
	case steps*PitchCount > MaxCells:
		return fmt.Errorf("%w: %.0f steps exceed the %d cell limit", ErrInvalidGridParameter, steps, MaxCells)
	}
	return nil
}

// StepCount returns floor(MaxTime / TimeStep). It is only meaningful for
// a grid that passes Validate.
func (g Grid) StepCount() int {
	return int(math.Floor(g.MaxTime/g.TimeStep + quantEpsilon))
}

// StepIndex returns floor(t / TimeStep). It never rounds.
func (g Grid) StepIndex(t float64) int {
	return int(math.Floor(t/g.TimeStep + quantEpsilon))
}

// ClampIndex pins i to the last row of the grid
func (g Grid) ClampIndex(i int) int {
	if last := g.StepCount() - 1; i > last {
		return last
	}
	return i
}

// BeyondHorizon reports whether a note starting at start is dropped.
// Only onsets are tested against the horizon; offsets are clamped.
func (g Grid) BeyondHorizon(start float64) bool {
	return start >= g.MaxTime
}

// TimeAt returns the onset time of step i
func (g Grid) TimeAt(i int) float64 {
	return float64(i) * g.TimeStep
}

// Cells returns the number of matrix cells for this grid
func (g Grid) Cells() int {
	return g.StepCount() * PitchCount
}

func (g Grid) String() string {
	return fmt.Sprintf("%gs x %d steps (%gs horizon)", g.TimeStep, g.StepCount(), g.MaxTime)
}
