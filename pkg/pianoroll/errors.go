package pianoroll

import (
	"errors"
	"fmt"
)

// Error kinds. Grid, pitch and shape errors abort a call; span, intensity
// and horizon problems skip the offending note and are reported as warnings.
var (
	ErrInvalidGridParameter = errors.New("invalid grid parameter")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrOutOfRangePitch      = errors.New("pitch out of range")
	ErrInvalidEventSpan     = errors.New("invalid event span")
	ErrInvalidIntensity     = errors.New("invalid intensity")
	ErrBeyondHorizon        = errors.New("note starts beyond horizon")
)

// Warning records a note that Encode skipped
type Warning struct {
	Index int // position in the input slice
	Note  Note
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("note %d (%s): %v", w.Index, w.Note, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Report summarises one Encode call
type Report struct {
	Encoded  int       // notes written into the matrix
	Drums    int       // percussion notes discarded
	Warnings []Warning // notes skipped for a recoverable reason
}

// Skipped returns the number of non-drum notes that were not encoded
func (r *Report) Skipped() int {
	return len(r.Warnings)
}

func (r *Report) warn(i int, n Note, err error) {
	r.Warnings = append(r.Warnings, Warning{Index: i, Note: n, Err: err})
}
