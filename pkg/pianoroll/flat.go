package pianoroll

import (
	"golang.org/x/exp/constraints"
)

// Number is any element type a flat piano roll may arrive as
type Number interface {
	constraints.Integer | constraints.Float
}

// FromFlat builds a matrix from a numeric flat array such as a float64
// NumPy buffer. Values are truncated toward zero; anything not above zero
// is silent and anything above 127 saturates.
func FromFlat[T Number](flat []T, g Grid) (*Matrix, error) {
	cells := make([]uint8, len(flat))
	for i, v := range flat {
		cells[i] = ToIntensity(v)
	}
	return Reshape(cells, g)
}

// ToIntensity converts one cell value to a matrix intensity
func ToIntensity[T Number](v T) uint8 {
	f := float64(v)
	switch {
	case !(f >= 1):
		return 0
	case f >= MaxVelocity:
		return MaxVelocity
	default:
		return uint8(f)
	}
}
