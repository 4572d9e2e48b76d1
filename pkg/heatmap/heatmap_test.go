package heatmap

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/james-see/midiroll/pkg/pianoroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"
)

func testMatrix(t *testing.T) *pianoroll.Matrix {
	t.Helper()
	g := pianoroll.Grid{TimeStep: 0.25, MaxTime: 2}
	m, _, err := pianoroll.Encode([]pianoroll.Note{
		{Pitch: 127, Velocity: 127, Start: 0, End: 0.5},
		{Pitch: 0, Velocity: 1, Start: 1, End: 1.5},
	}, g)
	require.NoError(t, err)
	return m
}

func TestRenderLayout(t *testing.T) {
	m := testMatrix(t)
	img, err := Render(m, Options{MaxWidth: 100, PitchScale: 2, Background: colornames.Black})
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(8, img.Bounds().Dx())
	assert.Equal(pianoroll.PitchCount*2, img.Bounds().Dy())

	black := color.RGBA{A: 0xff}
	// pitch 127 is the top row
	assert.NotEqual(black, img.RGBAAt(0, 0))
	assert.NotEqual(black, img.RGBAAt(0, 1))
	assert.Equal(black, img.RGBAAt(2, 0))
	// pitch 0 is the bottom row
	bottom := img.Bounds().Dy() - 1
	assert.NotEqual(black, img.RGBAAt(4, bottom))
	assert.Equal(black, img.RGBAAt(0, bottom))
}

func TestRenderBucketsKeepPeak(t *testing.T) {
	m := testMatrix(t)
	img, err := Render(m, Options{MaxWidth: 3, PitchScale: 1})
	require.NoError(t, err)

	// 8 steps into at most 3 columns -> buckets of 3
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.NotEqual(t, color.RGBA{A: 0xff}, img.RGBAAt(1, pianoroll.PitchCount-1))
}

func TestRenderEmpty(t *testing.T) {
	_, err := Render(nil, DefaultOptions())
	assert.Error(t, err)
	_, err = Render(&pianoroll.Matrix{Pitches: pianoroll.PitchCount}, DefaultOptions())
	assert.Error(t, err)
}

func TestPlasmaEnds(t *testing.T) {
	assert.Equal(t, plasmaStops[0].Hex(), Plasma(0).Hex())
	assert.Equal(t, plasmaStops[len(plasmaStops)-1].Hex(), Plasma(1).Hex())
	assert.Equal(t, Plasma(1).Hex(), Plasma(7).Hex())
	assert.Equal(t, Plasma(0).Hex(), Plasma(-1).Hex())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roll.png")
	require.NoError(t, WriteFile(path, testMatrix(t), DefaultOptions()))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testMatrix(t), DefaultOptions()))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, pianoroll.PitchCount*4, img.Bounds().Dy())
}
