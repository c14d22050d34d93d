package music

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"cesure-forge/internal/matrix"
)

// defaultMinKey caps the lowest key of a piece.
const defaultMinKey = 100

// Note is a note event quantized to chord ticks.
type Note struct {
	Tick int
	Key  uint8
	On   bool
}

// FromNotes builds a sequence from quantized events. A key sounds from the
// tick of its start event inclusive to the tick of its end event exclusive.
// Keys outside the chord range above the lowest key are dropped.
func FromNotes(division uint16, notes []Note, log logrus.FieldLogger) (*Sequence, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(notes) == 0 {
		return nil, ErrEmpty
	}
	sorted := append([]Note(nil), notes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	nbTicks := sorted[len(sorted)-1].Tick
	if nbTicks <= 0 {
		return nil, fmt.Errorf("%w: every event falls on tick 0", ErrEmpty)
	}
	minKey := defaultMinKey
	for _, n := range sorted {
		minKey = min(minKey, int(n.Key))
	}

	chords := make([]*matrix.Matrix, nbTicks)
	for i := range chords {
		chords[i] = matrix.NewRow(ChordDim)
	}
	dropped := make(map[uint8]struct{})
	mark := func(key uint8, from, to int) {
		idx := int(key) - minKey
		if idx >= ChordDim {
			dropped[key] = struct{}{}
			return
		}
		for t := from; t < min(to, nbTicks); t++ {
			chords[t].Set(0, idx, 1)
		}
	}

	open := make(map[uint8]int)
	for _, n := range sorted {
		if start, ok := open[n.Key]; ok {
			mark(n.Key, start, n.Tick)
			delete(open, n.Key)
		}
		if n.On {
			open[n.Key] = n.Tick
		}
	}
	for key, start := range open {
		mark(key, start, nbTicks)
	}
	if len(dropped) > 0 {
		log.WithFields(logrus.Fields{"keys": len(dropped), "min_key": minKey}).Warn("dropping keys outside the chord range")
	}

	return &Sequence{Infos: NewDescriptor(division, nbTicks, minKey), Chords: chords}, nil
}

// Notes returns the start and end events of every sounding key, sorted by
// tick with end events first on a shared tick. A key still sounding on the
// last chord ends one tick after it.
func (s *Sequence) Notes() []Note {
	minKey := s.MinKey()
	var notes []Note
	for k := 0; k < ChordDim; k++ {
		key := minKey + k
		if key < 0 || key > 127 {
			continue
		}
		on := false
		for t, c := range s.Chords {
			active := c.At(0, k) == 1
			switch {
			case active && !on:
				notes = append(notes, Note{Tick: t, Key: uint8(key), On: true})
			case !active && on:
				notes = append(notes, Note{Tick: t, Key: uint8(key)})
			}
			on = active
		}
		if on {
			notes = append(notes, Note{Tick: len(s.Chords), Key: uint8(key)})
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.On != b.On {
			return !a.On
		}
		return a.Key < b.Key
	})
	return notes
}
