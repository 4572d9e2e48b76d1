package converter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/james-see/midiroll/pkg/pianoroll"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DrumChannel is MIDI channel 10, reserved for percussion
const DrumChannel = 9

// MIDIConverter handles MIDI file parsing and generation
type MIDIConverter struct {
	ticksPerQuarter uint16
	tempo           float64
	program         uint8
	channel         uint8
}

// NewMIDIConverter creates a new MIDI converter. Generated files hold a
// single piano track at 120 BPM.
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 480,
		tempo:           120.0,
		program:         0,
		channel:         0,
	}
}

// ParseMIDIFile reads a MIDI file and extracts its notes
func (m *MIDIConverter) ParseMIDIFile(filename string) ([]pianoroll.Note, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI parses MIDI data into notes with absolute times in seconds.
//
// Note-ons are paired with note-offs per channel and key, first in first
// out: each note-off closes only the oldest open note on its key, so
// stacked re-triggers keep their own lengths rather than all ending at
// the first note-off. Notes left open at the end of a track are dropped.
// Notes on the percussion channel are flagged Drum. The result is in
// SortNotes order.
func (m *MIDIConverter) ParseMIDI(data []byte) (notes []pianoroll.Note, e error) {
	// smf can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			notes = nil
			e = fmt.Errorf("failed to parse MIDI: %v", r)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	type openNote struct {
		start    float64
		velocity uint8
	}

	for _, track := range s.Tracks {
		open := make(map[[2]uint8][]openNote)
		var absTicks int64
		for _, ev := range track {
			absTicks += int64(ev.Delta)

			var channel, key, velocity uint8
			switch {
			case ev.Message.GetNoteStart(&channel, &key, &velocity):
				k := [2]uint8{channel, key}
				seconds := float64(s.TimeAt(absTicks)) / 1e6
				open[k] = append(open[k], openNote{start: seconds, velocity: velocity})
			case ev.Message.GetNoteEnd(&channel, &key):
				k := [2]uint8{channel, key}
				pending := open[k]
				if len(pending) == 0 {
					continue
				}
				on := pending[0]
				open[k] = pending[1:]
				notes = append(notes, pianoroll.Note{
					Pitch:    int(key),
					Velocity: int(on.velocity),
					Start:    on.start,
					End:      float64(s.TimeAt(absTicks)) / 1e6,
					Drum:     channel == DrumChannel,
				})
			}
		}
	}

	pianoroll.SortNotes(notes)
	return notes, nil
}

// event kinds in the order they are written at a shared tick
const (
	kindNoteOff = iota // ends a note that started earlier
	kindNoteOn
	kindInstantOff // ends a note that started on this tick
)

type timedMessage struct {
	tick uint32
	kind int
	msg  midi.Message
}

// GenerateMIDI writes notes as a single-track SMF.
//
// Drum notes are left out. A note whose start and end fall on the same
// tick, such as a decoded single-step run, is written as a note-on
// immediately followed by its note-off rather than being lengthened.
func (m *MIDIConverter) GenerateMIDI(notes []pianoroll.Note) ([]byte, error) {
	if m.tempo <= 0 {
		m.tempo = 120.0
	}

	var events []timedMessage
	for i, n := range notes {
		if n.Drum {
			continue
		}
		if n.Pitch < 0 || n.Pitch >= pianoroll.PitchCount {
			return nil, fmt.Errorf("note %d: %w: %d", i, pianoroll.ErrOutOfRangePitch, n.Pitch)
		}
		if n.Start < 0 || n.End < n.Start {
			return nil, fmt.Errorf("note %d: %w", i, pianoroll.ErrInvalidEventSpan)
		}

		velocity := uint8(max(pianoroll.MinVelocity, min(n.Velocity, pianoroll.MaxVelocity)))
		key := uint8(n.Pitch)
		start := m.secondsToTicks(n.Start)
		end := m.secondsToTicks(n.End)

		offKind := kindNoteOff
		if end <= start {
			end = start
			offKind = kindInstantOff
		}
		events = append(events,
			timedMessage{tick: start, kind: kindNoteOn, msg: midi.NoteOn(m.channel, key, velocity)},
			timedMessage{tick: end, kind: offKind, msg: midi.NoteOff(m.channel, key)},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].kind < events[j].kind
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track
	track.Add(0, smf.MetaTempo(m.tempo))
	track.Add(0, midi.ProgramChange(m.channel, m.program))

	var currentTick uint32
	for _, ev := range events {
		track.Add(ev.tick-currentTick, ev.msg)
		currentTick = ev.tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMIDIFile writes notes to a MIDI file
func (m *MIDIConverter) WriteMIDIFile(notes []pianoroll.Note, filename string) error {
	data, err := m.GenerateMIDI(notes)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// secondsToTicks converts at the converter's fixed tempo
func (m *MIDIConverter) secondsToTicks(seconds float64) uint32 {
	return uint32(math.Round(seconds * m.TicksPerSecond()))
}

// TicksPerSecond reports the tick rate of generated files
func (m *MIDIConverter) TicksPerSecond() float64 {
	return float64(m.ticksPerQuarter) * m.tempo / 60
}

var errEmptyMIDI = errors.New("empty MIDI data")

// ValidateMIDI performs a cheap header check before parsing
func ValidateMIDI(data []byte) error {
	if len(data) == 0 {
		return errEmptyMIDI
	}
	if !bytes.HasPrefix(data, midiMagic) {
		return errors.New("missing MThd header")
	}
	return nil
}
