package pianoroll

import (
	"fmt"
	"math"
)

// Encode projects notes onto a freshly allocated matrix.
//
// Notes are applied strictly in slice order and each writes its velocity
// into rows [floor(start/step), floor(end/step)) of its pitch column, so a
// later note overwrites an earlier one wherever they overlap at the same
// pitch. Callers that need a canonical outcome should SortNotes first.
//
// Drum notes are discarded. A note starting at or after the horizon is
// skipped; a note ending past it is clamped to the last row. Grid errors
// and out-of-range pitches abort the call. Malformed spans and
// velocities only skip the note and are listed in the report.
func Encode(notes []Note, g Grid) (*Matrix, *Report, error) {
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}

	m := NewMatrix(g)
	report := &Report{}

	for i, n := range notes {
		if n.Drum {
			report.Drums++
			continue
		}
		if n.Pitch < 0 || n.Pitch >= PitchCount {
			return nil, nil, fmt.Errorf("note %d: %w: %d", i, ErrOutOfRangePitch, n.Pitch)
		}
		if !(n.Start >= 0) || !(n.End > n.Start) {
			report.warn(i, n, ErrInvalidEventSpan)
			continue
		}
		if n.Velocity < MinVelocity || n.Velocity > MaxVelocity {
			report.warn(i, n, ErrInvalidIntensity)
			continue
		}
		if g.BeyondHorizon(n.Start) {
			report.warn(i, n, ErrBeyondHorizon)
			continue
		}

		startIdx := g.ClampIndex(g.StepIndex(n.Start))
		// Offsets past the horizon quantize to StepCount and clamp.
		endIdx := g.ClampIndex(g.StepIndex(math.Min(n.End, g.MaxTime)))

		v := uint8(n.Velocity)
		for s := startIdx; s < endIdx; s++ {
			m.Cells[s*PitchCount+n.Pitch] = v
		}
		report.Encoded++
	}

	return m, report, nil
}
