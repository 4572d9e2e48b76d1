package converter_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/converter/formats"
	"github.com/james-see/midiroll/pkg/logging"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

var grid = pianoroll.Grid{TimeStep: 0.25, MaxTime: 4}

func newConverter() *converter.Converter {
	return converter.New(grid, formats.NewRoll(), formats.NewNPY())
}

func writeMIDI(t *testing.T, dir, name string, notes []pianoroll.Note) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := converter.NewMIDIConverter().WriteMIDIFile(notes, path); err != nil {
		t.Fatalf("WriteMIDIFile() error = %v", err)
	}
	return path
}

var melody = []pianoroll.Note{
	{Pitch: 60, Velocity: 100, Start: 0, End: 1},
	{Pitch: 64, Velocity: 80, Start: 1, End: 2},
	{Pitch: 67, Velocity: 90, Start: 3.5, End: 6}, // runs past the horizon
}

func TestConvertFileChain(t *testing.T) {
	dir := t.TempDir()
	conv := newConverter()
	src := writeMIDI(t, dir, "melody.mid", melody)

	rollPath := filepath.Join(dir, "melody.roll")
	report, err := conv.ConvertFile(src, rollPath)
	if err != nil {
		t.Fatalf("ConvertFile(mid -> roll) error = %v", err)
	}
	if report.Encoded != 3 || report.Skipped() != 0 {
		t.Errorf("report = %+v, want 3 encoded", report)
	}

	npyPath := filepath.Join(dir, "melody.npy")
	if _, err := conv.ConvertFile(rollPath, npyPath); err != nil {
		t.Fatalf("ConvertFile(roll -> npy) error = %v", err)
	}

	fromRoll, _, err := conv.LoadMatrix(rollPath)
	if err != nil {
		t.Fatalf("LoadMatrix(roll) error = %v", err)
	}
	fromNPY, _, err := conv.LoadMatrix(npyPath)
	if err != nil {
		t.Fatalf("LoadMatrix(npy) error = %v", err)
	}
	if !bytes.Equal(fromRoll.Cells, fromNPY.Cells) {
		t.Error("roll and npy matrices differ")
	}

	outPath := filepath.Join(dir, "decoded.mid")
	if _, err := conv.ConvertFile(npyPath, outPath); err != nil {
		t.Fatalf("ConvertFile(npy -> mid) error = %v", err)
	}
	notes, err := converter.NewMIDIConverter().ParseMIDIFile(outPath)
	if err != nil {
		t.Fatalf("ParseMIDIFile() error = %v", err)
	}

	// each run loses its final step, and the long note stops at the horizon
	want := []struct {
		pitch      int
		start, end float64
	}{
		{60, 0, 0.75},
		{64, 1, 1.75},
		{67, 3.5, 3.5},
	}
	if len(notes) != len(want) {
		t.Fatalf("decoded %d notes, want %d: %v", len(notes), len(want), notes)
	}
	for i, w := range want {
		n := notes[i]
		if n.Pitch != w.pitch || n.Start != w.start || n.End != w.end {
			t.Errorf("note %d = %v, want pitch %d %.2f-%.2f", i, n, w.pitch, w.start, w.end)
		}
	}
}

func TestConvertHeatmap(t *testing.T) {
	dir := t.TempDir()
	conv := newConverter()
	src := writeMIDI(t, dir, "melody.mid", melody)

	png := filepath.Join(dir, "melody.png")
	if _, err := conv.ConvertFile(src, png); err != nil {
		t.Fatalf("ConvertFile(mid -> png) error = %v", err)
	}
	data, err := os.ReadFile(png)
	if err != nil {
		t.Fatal(err)
	}
	if converter.DetectFormatFromContent(data) != converter.FormatPNG {
		t.Error("output is not a PNG")
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writeMIDI(t, dir, "melody.mid", melody[:1]))
	if err != nil {
		t.Fatal(err)
	}

	out, report, err := newConverter().RoundTrip(data)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if report.Encoded != 1 {
		t.Errorf("report.Encoded = %d, want 1", report.Encoded)
	}
	notes, err := converter.NewMIDIConverter().ParseMIDI(out)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if len(notes) != 1 || notes[0].End != 0.75 {
		t.Errorf("RoundTrip() notes = %v, want one note ending at 0.75", notes)
	}
}

func TestConvertFileErrors(t *testing.T) {
	dir := t.TempDir()
	conv := newConverter()
	src := writeMIDI(t, dir, "melody.mid", melody)

	if _, err := conv.ConvertFile(filepath.Join(dir, "missing.mid"), filepath.Join(dir, "x.roll")); err == nil {
		t.Error("ConvertFile() should fail for a missing input")
	}
	if _, err := conv.ConvertFile(src, filepath.Join(dir, "out.txt")); err == nil {
		t.Error("ConvertFile() should fail for an unknown output format")
	}
	if _, err := conv.ConvertFile(src, filepath.Join(dir, "out.wav")); !errors.Is(err, converter.ErrUnsupportedConversion) {
		t.Errorf("ConvertFile(mid -> wav) error = %v, want ErrUnsupportedConversion", err)
	}

	// a .npy written on a different grid cannot be read on this one
	other := converter.New(pianoroll.Grid{TimeStep: 0.5, MaxTime: 4}, formats.NewNPY())
	npyPath := filepath.Join(dir, "coarse.npy")
	if _, err := other.ConvertFile(src, npyPath); err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	if _, err := conv.ConvertFile(npyPath, filepath.Join(dir, "y.mid")); !errors.Is(err, pianoroll.ErrShapeMismatch) {
		t.Errorf("ConvertFile(npy -> mid) error = %v, want ErrShapeMismatch", err)
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		writeMIDI(t, dir, "a.mid", melody[:1]),
		writeMIDI(t, dir, "b.mid", melody[1:2]),
		filepath.Join(dir, "missing.mid"),
	}
	outDir := filepath.Join(dir, "out")

	ctx := logging.WithContext(context.Background(), logging.Discard())
	results, err := newConverter().Batch(ctx, inputs, outDir, converter.FormatRoll, 2)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("Batch() returned %d results, want %d", len(results), len(inputs))
	}

	for i, r := range results[:2] {
		if r.Error != nil {
			t.Errorf("result %d error = %v", i, r.Error)
		}
		if _, err := os.Stat(r.Output); err != nil {
			t.Errorf("result %d output missing: %v", i, err)
		}
	}
	if results[0].Output != filepath.Join(outDir, "a.roll") {
		t.Errorf("results[0].Output = %q", results[0].Output)
	}
	if results[2].Error == nil {
		t.Error("missing input should produce an error result")
	}
}

func TestBatchOutputCollision(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	inputs := []string{
		writeMIDI(t, filepath.Join(dir, "a"), "x.mid", melody[:1]),
		writeMIDI(t, filepath.Join(dir, "b"), "x.mid", melody[1:2]),
		writeMIDI(t, dir, "y.mid", melody),
	}
	outDir := filepath.Join(dir, "out")

	ctx := logging.WithContext(context.Background(), logging.Discard())
	results, err := newConverter().Batch(ctx, inputs, outDir, converter.FormatRoll, 3)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}

	for i, r := range results[:2] {
		if !errors.Is(r.Error, converter.ErrOutputCollision) {
			t.Errorf("result %d error = %v, want ErrOutputCollision", i, r.Error)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "x.roll")); !os.IsNotExist(err) {
		t.Errorf("colliding output should not be written, stat error = %v", err)
	}
	if results[2].Error != nil {
		t.Errorf("y.mid error = %v", results[2].Error)
	}
}

func TestBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newConverter().Batch(ctx, []string{writeMIDI(t, dir, "a.mid", melody)}, dir, converter.FormatNPY, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Batch() error = %v, want context.Canceled", err)
	}
}
