package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// buildNPY assembles a version 1.0 file around header and payload
func buildNPY(header string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

func TestNPYMarshal(t *testing.T) {
	m := testMatrix(t)
	data, err := NewNPY().Marshal(m, testGrid)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if converter.DetectFormatFromContent(data) != converter.FormatNPY {
		t.Error("marshalled data should be detected as npy")
	}
	headerLen := int(binary.LittleEndian.Uint16(data[8:]))
	if (npyPreamble10+headerLen)%npyAlign != 0 {
		t.Errorf("header not aligned: %d", npyPreamble10+headerLen)
	}
	header := string(data[npyPreamble10 : npyPreamble10+headerLen])
	if !strings.Contains(header, "'shape': (16, 128)") || !strings.HasSuffix(header, "\n") {
		t.Errorf("unexpected header %q", header)
	}
	if !bytes.Equal(data[npyPreamble10+headerLen:], m.Cells) {
		t.Error("payload differs from cells")
	}
}

func TestNPYRoundTrip(t *testing.T) {
	m := testMatrix(t)
	data, err := NewNPY().Marshal(m, testGrid)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, g, err := NewNPY().Unmarshal(data, testGrid)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if g != testGrid {
		t.Errorf("grid = %v, want caller grid %v", g, testGrid)
	}
	if !bytes.Equal(got.Cells, m.Cells) {
		t.Error("cells differ after round trip")
	}
}

func TestNPYFloatFlat(t *testing.T) {
	// a flattened float64 vector, as np.save writes after reshape(-1)
	count := testGrid.Cells()
	payload := make([]byte, 8*count)
	binary.LittleEndian.PutUint64(payload[8*(3*128+60):], math.Float64bits(99))
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d,), }\n", count)

	m, _, err := NewNPY().Unmarshal(buildNPY(header, payload), testGrid)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.At(3, 60) != 99 || m.Active() != 1 {
		t.Errorf("At(3, 60) = %d, active = %d", m.At(3, 60), m.Active())
	}
}

func TestNPYFortranOrder(t *testing.T) {
	steps := testGrid.StepCount()
	payload := make([]byte, steps*128)
	payload[60*steps+5] = 42 // column-major (step 5, pitch 60)
	header := fmt.Sprintf("{'descr': '|u1', 'fortran_order': True, 'shape': (%d, 128), }\n", steps)

	m, _, err := NewNPY().Unmarshal(buildNPY(header, payload), testGrid)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.At(5, 60) != 42 {
		t.Errorf("At(5, 60) = %d, want 42", m.At(5, 60))
	}
}

func TestNPYShapeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		payload int
	}{
		{"flat not multiple of 128", "{'descr': '|u1', 'fortran_order': False, 'shape': (130,), }", 130},
		{"wrong columns", "{'descr': '|u1', 'fortran_order': False, 'shape': (16, 64), }", 16 * 64},
		{"wrong steps", "{'descr': '|u1', 'fortran_order': False, 'shape': (10, 128), }", 10 * 128},
		{"short payload", "{'descr': '|u1', 'fortran_order': False, 'shape': (16, 128), }", 100},
		{"three dimensions", "{'descr': '|u1', 'fortran_order': False, 'shape': (2, 8, 128), }", 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := NewNPY().Unmarshal(buildNPY(tt.header+"\n", make([]byte, tt.payload)), testGrid)
			if !errors.Is(err, pianoroll.ErrShapeMismatch) {
				t.Errorf("Unmarshal() error = %v, want ErrShapeMismatch", err)
			}
			if m != nil {
				t.Error("Unmarshal() returned a partial matrix")
			}
		})
	}
}

func TestNPYInvalid(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantShape bool
	}{
		{"bad magic", []byte("NOTNUMPY!!"), false},
		{"big endian", buildNPY("{'descr': '>f8', 'fortran_order': False, 'shape': (2048,), }\n", make([]byte, 8*2048)), false},
		{"missing shape", buildNPY("{'descr': '|u1', 'fortran_order': False, }\n", nil), false},
		{"truncated header", buildNPY("{'descr'", nil)[:12], false},
		{"shape overflows element count", buildNPY("{'descr': '<f8', 'fortran_order': False, 'shape': (2305843009213693952,), }\n", nil), true},
		{"shape overflows 2-D product", buildNPY("{'descr': '<i4', 'fortran_order': False, 'shape': (72057594037927936, 128), }\n", make([]byte, 4*128)), true},
		{"shape larger than payload", buildNPY("{'descr': '<f4', 'fortran_order': False, 'shape': (4096,), }\n", make([]byte, 2048)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewNPY().Unmarshal(tt.data, testGrid)
			if err == nil {
				t.Fatal("Unmarshal() error = nil")
			}
			if tt.wantShape && !errors.Is(err, pianoroll.ErrShapeMismatch) {
				t.Errorf("Unmarshal() error = %v, want ErrShapeMismatch", err)
			}
		})
	}
}
