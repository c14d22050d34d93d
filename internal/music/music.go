// Package music converts between standard MIDI files and the chord vectors
// consumed by the network: a descriptor row per piece and one fixed-width
// chord row per sixteenth-note tick.
package music

import (
	"errors"
	"fmt"
	"math"

	"cesure-forge/internal/matrix"
)

const (
	// DescriptorDim is the width of a piece descriptor.
	DescriptorDim = 3
	// ChordDim is the width of a chord vector, four octaves of twelve keys.
	ChordDim = 12 * 4

	DivisionRange = 1000.0
	TicksRange    = 100000.0
	MinKeyRange   = 100.0

	// NoteThreshold is the activation above which a generated unit counts as
	// a sounding note.
	NoteThreshold = 0.9
)

// ErrEmpty reports a piece without any note.
var ErrEmpty = errors.New("music: no notes")

// Sequence is a decoded piece.
type Sequence struct {
	Infos  *matrix.Matrix
	Chords []*matrix.Matrix
}

// NewDescriptor normalizes a piece's time resolution, tick count and lowest
// key into a descriptor row.
func NewDescriptor(division uint16, nbTicks, minKey int) *matrix.Matrix {
	return matrix.RowOf(
		float64(division)/DivisionRange,
		float64(nbTicks)/TicksRange,
		float64(minKey)/MinKeyRange,
	)
}

// Division returns the SMF ticks per quarter note stored in the descriptor.
func (s *Sequence) Division() uint16 {
	return uint16(math.Round(s.Infos.At(0, 0) * DivisionRange))
}

// MinKey returns the MIDI key of chord element 0.
func (s *Sequence) MinKey() int {
	return int(math.Round(s.Infos.At(0, 2) * MinKeyRange))
}

// Validate checks the descriptor and chord widths.
func (s *Sequence) Validate() error {
	if s.Infos == nil || !s.Infos.IsRow() || s.Infos.Cols() != DescriptorDim {
		return fmt.Errorf("music: descriptor must be a 1x%d row", DescriptorDim)
	}
	for i, c := range s.Chords {
		if !c.IsRow() || c.Cols() != ChordDim {
			return fmt.Errorf("music: chord %d is %dx%d, want 1x%d", i, c.Rows(), c.Cols(), ChordDim)
		}
	}
	return nil
}

// Split returns the first prefix chords and the remaining ones. prefix must
// leave at least one chord to compute.
func (s *Sequence) Split(prefix int) (inject, compute []*matrix.Matrix, err error) {
	if prefix < 0 || prefix >= len(s.Chords) {
		return nil, nil, fmt.Errorf("music: prefix %d out of range for %d chords", prefix, len(s.Chords))
	}
	return s.Chords[:prefix:prefix], s.Chords[prefix:], nil
}

// NormalizeChord rounds a generated chord in place to 0/1 values.
func NormalizeChord(chord *matrix.Matrix) {
	if !chord.IsRow() || chord.Cols() != ChordDim {
		panic(fmt.Errorf("%w: chord is %dx%d, want 1x%d", matrix.ErrShape, chord.Rows(), chord.Cols(), ChordDim))
	}
	chord.Apply(func(v float64) float64 {
		if v > NoteThreshold {
			return 1
		}
		return 0
	})
}

// Stepper is a recurrent generator driven one tick at a time.
type Stepper interface {
	NewSequence(infos *matrix.Matrix)
	InjectNext(chord *matrix.Matrix)
	ComputeNext() *matrix.Matrix
}

// Compose replays inject through st, then generates ticks normalized chords.
// The returned sequence starts with copies of the injected chords.
func Compose(st Stepper, infos *matrix.Matrix, inject []*matrix.Matrix, ticks int) *Sequence {
	st.NewSequence(infos)
	chords := make([]*matrix.Matrix, 0, len(inject)+ticks)
	for _, c := range inject {
		st.InjectNext(c)
		chords = append(chords, c.Clone())
	}
	for i := 0; i < ticks; i++ {
		out := st.ComputeNext()
		NormalizeChord(out)
		chords = append(chords, out)
	}
	return &Sequence{Infos: infos.Clone(), Chords: chords}
}
