package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// NumPy .npy constants
const (
	npyAlign      = 64
	npyPreamble10 = 10 // magic(6) version(2) header length(2)
	npyPreamble20 = 12 // magic(6) version(2) header length(4)
)

var npyMagic = []byte("\x93NUMPY")

// NPY reads and writes NumPy arrays for exchange with Python training
// pipelines. It carries no grid, so the caller's grid decides the
// expected shape.
type NPY struct{}

// NewNPY creates a .npy codec
func NewNPY() *NPY {
	return &NPY{}
}

// Name returns the codec name
func (n *NPY) Name() string {
	return "NumPy array"
}

// Format returns converter.FormatNPY
func (n *NPY) Format() converter.Format {
	return converter.FormatNPY
}

// Marshal writes a version 1.0 uint8 array of shape (steps, 128)
func (n *NPY) Marshal(m *pianoroll.Matrix, _ pianoroll.Grid) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil matrix")
	}

	header := fmt.Sprintf("{'descr': '|u1', 'fortran_order': False, 'shape': (%d, %d), }", m.Steps, m.Pitches)
	pad := npyAlign - (npyPreamble10+len(header)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Grow(npyPreamble10 + len(header) + len(m.Cells))
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(m.Cells)
	return buf.Bytes(), nil
}

// npyHeader is the parsed array description
type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// Unmarshal accepts 1-D flat arrays or 2-D (steps, 128) arrays of
// uint8, int8, int32, int64, float32 or float64
func (n *NPY) Unmarshal(data []byte, g pianoroll.Grid) (*pianoroll.Matrix, pianoroll.Grid, error) {
	hdr, payload, err := parseNPY(data)
	if err != nil {
		return nil, g, err
	}

	// every element is at least one byte, so a shape larger than the
	// payload is rejected before the product can overflow
	count := 1
	for _, d := range hdr.shape {
		if d > 0 && count > len(payload)/d {
			return nil, g, fmt.Errorf("%w: npy shape %v exceeds the %d byte payload", pianoroll.ErrShapeMismatch, hdr.shape, len(payload))
		}
		count *= d
	}
	switch len(hdr.shape) {
	case 1:
	case 2:
		if hdr.shape[1] != pianoroll.PitchCount {
			return nil, g, fmt.Errorf("%w: array has %d columns, want %d", pianoroll.ErrShapeMismatch, hdr.shape[1], pianoroll.PitchCount)
		}
	default:
		return nil, g, fmt.Errorf("%w: %d-dimensional array", pianoroll.ErrShapeMismatch, len(hdr.shape))
	}

	var m *pianoroll.Matrix
	switch hdr.descr {
	case "|u1", "<u1":
		m, err = decodeNPY(payload, count, 1, func(b []byte) uint8 { return b[0] }, g)
	case "|i1", "<i1":
		m, err = decodeNPY(payload, count, 1, func(b []byte) int8 { return int8(b[0]) }, g)
	case "<i4":
		m, err = decodeNPY(payload, count, 4, func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }, g)
	case "<i8":
		m, err = decodeNPY(payload, count, 8, func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }, g)
	case "<f4":
		m, err = decodeNPY(payload, count, 4, func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }, g)
	case "<f8":
		m, err = decodeNPY(payload, count, 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }, g)
	default:
		return nil, g, fmt.Errorf("unsupported npy dtype %q", hdr.descr)
	}
	if err != nil {
		return nil, g, err
	}

	if hdr.fortran && len(hdr.shape) == 2 {
		m = fromColumnMajor(m)
	}
	return m, g, nil
}

func decodeNPY[T pianoroll.Number](payload []byte, count, size int, read func([]byte) T, g pianoroll.Grid) (*pianoroll.Matrix, error) {
	if count > len(payload)/size || len(payload) != count*size {
		return nil, fmt.Errorf("%w: npy payload is %d bytes, shape needs %d", pianoroll.ErrShapeMismatch, len(payload), count*size)
	}
	values := make([]T, count)
	for i := range values {
		values[i] = read(payload[i*size : (i+1)*size])
	}
	return pianoroll.FromFlat(values, g)
}

// fromColumnMajor reorders cells that were read as if row-major
func fromColumnMajor(m *pianoroll.Matrix) *pianoroll.Matrix {
	out := &pianoroll.Matrix{Steps: m.Steps, Pitches: m.Pitches, Cells: make([]uint8, len(m.Cells))}
	for p := 0; p < m.Pitches; p++ {
		for s := 0; s < m.Steps; s++ {
			out.Set(s, p, m.Cells[p*m.Steps+s])
		}
	}
	return out
}

func parseNPY(data []byte) (npyHeader, []byte, error) {
	var hdr npyHeader
	if len(data) < npyPreamble10 || !bytes.HasPrefix(data, npyMagic) {
		return hdr, nil, errors.New("invalid npy: bad magic")
	}

	var headerLen, start int
	switch major := data[6]; major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:]))
		start = npyPreamble10
	case 2, 3:
		if len(data) < npyPreamble20 {
			return hdr, nil, errors.New("npy data too short")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:]))
		start = npyPreamble20
	default:
		return hdr, nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(data) < start+headerLen {
		return hdr, nil, errors.New("npy header truncated")
	}

	dict := string(data[start : start+headerLen])
	var err error
	if hdr.descr, err = npyField(dict, "descr"); err != nil {
		return hdr, nil, err
	}
	hdr.descr = strings.Trim(hdr.descr, "'\"")

	fortran, err := npyField(dict, "fortran_order")
	if err != nil {
		return hdr, nil, err
	}
	hdr.fortran = fortran == "True"

	shape, err := npyField(dict, "shape")
	if err != nil {
		return hdr, nil, err
	}
	if hdr.shape, err = parseShape(shape); err != nil {
		return hdr, nil, err
	}

	return hdr, data[start+headerLen:], nil
}

// npyField extracts the raw value for key from the header dict literal
func npyField(dict, key string) (string, error) {
	idx := strings.Index(dict, "'"+key+"'")
	if idx < 0 {
		return "", fmt.Errorf("npy header missing %q", key)
	}
	rest := strings.TrimSpace(dict[idx+len(key)+2:])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))

	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return "", fmt.Errorf("npy header: unterminated %q", key)
		}
		return rest[:end+1], nil
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return "", fmt.Errorf("npy header: unterminated %q", key)
	}
	return strings.TrimSpace(rest[:end]), nil
}

func parseShape(s string) ([]int, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	var shape []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid npy shape %q", s)
		}
		shape = append(shape, d)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: scalar npy array", pianoroll.ErrShapeMismatch)
	}
	return shape, nil
}
