// Package synth renders MIDI data to WAV audio through a SoundFont
package synth

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

const (
	// DefaultSampleRate matches CD audio
	DefaultSampleRate = 44100
	// DefaultTail lets release envelopes ring out after the last note
	DefaultTail = 2 * time.Second

	bitDepth      = 16
	channels      = 2
	wavFormatPCM  = 1
	maxSampleInt  = math.MaxInt16
	minSampleInt  = math.MinInt16
	renderSeconds = 10 // render in blocks of this many seconds
)

// Renderer plays MIDI data through a loaded SoundFont
type Renderer struct {
	soundFont  *meltysynth.SoundFont
	sampleRate int32
	tail       time.Duration
}

// LoadSoundFont reads and parses an .sf2 file
func LoadSoundFont(path string) (*meltysynth.SoundFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load soundfont %s", path)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse soundfont %s", path)
	}
	return sf, nil
}

// New creates a renderer for an already parsed SoundFont
func New(sf *meltysynth.SoundFont, sampleRate int) *Renderer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Renderer{
		soundFont:  sf,
		sampleRate: int32(sampleRate),
		tail:       DefaultTail,
	}
}

// NewFromFile loads the SoundFont at path and creates a renderer
func NewFromFile(path string, sampleRate int) (*Renderer, error) {
	sf, err := LoadSoundFont(path)
	if err != nil {
		return nil, err
	}
	return New(sf, sampleRate), nil
}

// SampleRate returns the output sample rate in Hz
func (r *Renderer) SampleRate() int {
	return int(r.sampleRate)
}

// SetTail changes how long rendering continues after the last event
func (r *Renderer) SetTail(d time.Duration) {
	if d >= 0 {
		r.tail = d
	}
}

// Render synthesises the whole MIDI file and returns the stereo channels
func (r *Renderer) Render(midiData []byte) (left, right []float32, err error) {
	if r.soundFont == nil {
		return nil, nil, errors.New("no soundfont loaded")
	}

	midiFile, err := meltysynth.NewMidiFile(bytes.NewReader(midiData))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse MIDI for synthesis")
	}

	settings := meltysynth.NewSynthesizerSettings(r.sampleRate)
	synthesizer, err := meltysynth.NewSynthesizer(r.soundFont, settings)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create synthesizer")
	}

	sequencer := meltysynth.NewMidiFileSequencer(synthesizer)
	sequencer.Play(midiFile, false)

	total := int(float64(r.sampleRate) * (midiFile.GetLength() + r.tail).Seconds())
	left = make([]float32, total)
	right = make([]float32, total)

	block := int(r.sampleRate) * renderSeconds
	for start := 0; start < total; start += block {
		end := min(start+block, total)
		sequencer.Render(left[start:end], right[start:end])
	}
	return left, right, nil
}

// RenderWAV synthesises midiData and writes 16-bit stereo WAV into w
func (r *Renderer) RenderWAV(midiData []byte, w io.WriteSeeker) error {
	left, right, err := r.Render(midiData)
	if err != nil {
		return err
	}
	return WriteWAV(w, left, right, int(r.sampleRate))
}

// RenderFile renders the MIDI file at midiPath into a WAV file at wavPath
func (r *Renderer) RenderFile(midiPath, wavPath string) error {
	data, err := os.ReadFile(midiPath)
	if err != nil {
		return errors.Wrap(err, "failed to read MIDI file")
	}

	f, err := os.Create(wavPath)
	if err != nil {
		return errors.Wrap(err, "failed to create WAV file")
	}
	if err := r.RenderWAV(data, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteWAV encodes stereo float samples in [-1,1] as 16-bit PCM
func WriteWAV(w io.WriteSeeker, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return errors.Errorf("channel length mismatch: %d left, %d right", len(left), len(right))
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Data:           interleavePCM16(left, right),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write WAV samples")
	}
	return errors.Wrap(enc.Close(), "failed to finalise WAV")
}

func interleavePCM16(left, right []float32) []int {
	data := make([]int, 2*len(left))
	for i := range left {
		data[2*i] = toPCM16(left[i])
		data[2*i+1] = toPCM16(right[i])
	}
	return data
}

func toPCM16(v float32) int {
	s := int(math.Round(float64(v) * maxSampleInt))
	if s > maxSampleInt {
		return maxSampleInt
	}
	if s < minSampleInt {
		return minSampleInt
	}
	return s
}
