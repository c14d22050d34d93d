package music

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerChord = 4 // chord ticks per quarter note
	velocity      = 100
	tempoBPM      = 120
)

var errTimeFormat = errors.New("music: only metric time formats are supported")

// ReadFile decodes the standard MIDI file at path.
func ReadFile(path string, log logrus.FieldLogger) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open midi: %w", err)
	}
	defer f.Close()
	seq, err := Decode(f, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Decode reads a standard MIDI file and quantizes the note events of every
// track to sixteenth-note ticks.
func Decode(r io.Reader, log logrus.FieldLogger) (*Sequence, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	metric, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errTimeFormat
	}
	division := uint16(metric)
	step := uint64(division / ticksPerChord)
	if step == 0 {
		return nil, fmt.Errorf("music: division %d is below one tick per chord", division)
	}

	var notes []Note
	for _, track := range file.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				notes = append(notes, Note{Tick: int(abs / step), Key: key, On: true})
			case msg.GetNoteEnd(&ch, &key):
				notes = append(notes, Note{Tick: int(abs / step), Key: key})
			}
		}
	}
	return FromNotes(division, notes, log)
}

// WriteFile encodes s as a two-track standard MIDI file at path.
func (s *Sequence) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create midi: %w", err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo encodes s as a standard MIDI file: a tempo track at 120 bpm in
// 4/4 followed by the note track.
func (s *Sequence) WriteTo(w io.Writer) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	division := s.Division()
	step := uint32(division / ticksPerChord)
	if step == 0 {
		return 0, fmt.Errorf("music: division %d is below one tick per chord", division)
	}

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(division)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(tempoBPM))
	tempo.Close(0)
	if err := file.Add(tempo); err != nil {
		return 0, fmt.Errorf("add tempo track: %w", err)
	}

	var notes smf.Track
	last := 0
	for _, n := range s.Notes() {
		delta := uint32(n.Tick-last) * step
		if n.On {
			notes.Add(delta, midi.NoteOn(0, n.Key, velocity))
		} else {
			notes.Add(delta, midi.NoteOff(0, n.Key))
		}
		last = n.Tick
	}
	notes.Close(0)
	if err := file.Add(notes); err != nil {
		return 0, fmt.Errorf("add note track: %w", err)
	}

	n, err := file.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("write smf: %w", err)
	}
	return n, nil
}
