package formats

import (
	"bytes"
	"errors"
	"testing"

	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

var testGrid = pianoroll.Grid{TimeStep: 0.25, MaxTime: 4}

func testMatrix(t *testing.T) *pianoroll.Matrix {
	t.Helper()
	m, _, err := pianoroll.Encode([]pianoroll.Note{
		{Pitch: 60, Velocity: 100, Start: 0, End: 1},
		{Pitch: 64, Velocity: 80, Start: 0.5, End: 2},
		{Pitch: 67, Velocity: 127, Start: 3, End: 9},
	}, testGrid)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return m
}

func TestRollName(t *testing.T) {
	r := NewRoll()
	if r.Name() != "midiroll binary" {
		t.Errorf("Name() = %q", r.Name())
	}
	if r.Format() != converter.FormatRoll {
		t.Errorf("Format() = %v, want %v", r.Format(), converter.FormatRoll)
	}
}

func TestRollMarshal(t *testing.T) {
	m := testMatrix(t)
	data, err := NewRoll().Marshal(m, testGrid)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if want := RollHeaderSize + len(m.Cells) + 1; len(data) != want {
		t.Errorf("Marshal() length = %d, want %d", len(data), want)
	}
	if !bytes.Equal(data[:4], RollMagic[:]) {
		t.Errorf("magic = % X, want % X", data[:4], RollMagic)
	}
	if converter.DetectFormatFromContent(data) != converter.FormatRoll {
		t.Error("marshalled data should be detected as roll")
	}
}

func TestRollRoundTrip(t *testing.T) {
	m := testMatrix(t)
	data, err := NewRoll().Marshal(m, testGrid)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// the grid argument is ignored in favour of the stored one
	got, g, err := NewRoll().Unmarshal(data, pianoroll.DefaultGrid())
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if g != testGrid {
		t.Errorf("grid = %v, want %v", g, testGrid)
	}
	if !bytes.Equal(got.Cells, m.Cells) {
		t.Error("cells differ after round trip")
	}
}

func TestRollUnmarshalErrors(t *testing.T) {
	good, err := NewRoll().Marshal(testMatrix(t), testGrid)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	corrupt := func(mutate func([]byte) []byte) []byte {
		data := append([]byte(nil), good...)
		return mutate(data)
	}

	tests := []struct {
		name      string
		data      []byte
		shape     bool
		intensity bool
	}{
		{"too short", good[:10], false, false},
		{"bad magic", corrupt(func(d []byte) []byte { d[0] = 'X'; return d }), false, false},
		{"bad version", corrupt(func(d []byte) []byte { d[4] = 9; return d }), false, false},
		{"truncated cells", corrupt(func(d []byte) []byte { return d[:len(d)-5] }), true, false},
		{"bad checksum", corrupt(func(d []byte) []byte { d[len(d)-1] ^= 0x55; return d }), false, false},
		{"wrong pitches", corrupt(func(d []byte) []byte { d[25] = 64; return d }), true, false},
		{"loud cell", corrupt(func(d []byte) []byte { d[RollHeaderSize] = 200; d[len(d)-1] ^= 200; return d }), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := NewRoll().Unmarshal(tt.data, testGrid)
			if err == nil {
				t.Fatal("Unmarshal() error = nil")
			}
			if m != nil {
				t.Error("Unmarshal() returned a matrix on error")
			}
			if tt.shape && !errors.Is(err, pianoroll.ErrShapeMismatch) {
				t.Errorf("Unmarshal() error = %v, want ErrShapeMismatch", err)
			}
			if tt.intensity && !errors.Is(err, pianoroll.ErrInvalidIntensity) {
				t.Errorf("Unmarshal() error = %v, want ErrInvalidIntensity", err)
			}
		})
	}
}

func TestRollMarshalShapeMismatch(t *testing.T) {
	_, err := NewRoll().Marshal(testMatrix(t), pianoroll.DefaultGrid())
	if !errors.Is(err, pianoroll.ErrShapeMismatch) {
		t.Errorf("Marshal() error = %v, want ErrShapeMismatch", err)
	}
	if _, err := NewRoll().Marshal(nil, testGrid); err == nil {
		t.Error("Marshal(nil) should fail")
	}
}
