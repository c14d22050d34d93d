// Package dataset finds and decodes the pieces a network trains on.
package dataset

import (
	"errors"
	"fmt"

	"cesure-forge/internal/matrix"
	"cesure-forge/internal/music"
)

// ErrInvalidSet reports a training set with inconsistent widths.
var ErrInvalidSet = errors.New("dataset: invalid training set")

// TrainingSet is one piece prepared for training: a descriptor, the chords
// replayed as known history and the chords the network must predict.
type TrainingSet struct {
	Name    string
	Infos   *matrix.Matrix
	Inject  []*matrix.Matrix
	Compute []*matrix.Matrix
}

// NewTrainingSet checks that infos is a row and that every chord is a row of
// the same width, with at least one chord to compute.
func NewTrainingSet(infos *matrix.Matrix, inject, compute []*matrix.Matrix) (*TrainingSet, error) {
	if infos == nil || !infos.IsRow() {
		return nil, fmt.Errorf("%w: descriptor must be a row", ErrInvalidSet)
	}
	if len(compute) == 0 {
		return nil, fmt.Errorf("%w: nothing to compute", ErrInvalidSet)
	}
	width := compute[0].Cols()
	for i, c := range append(append([]*matrix.Matrix(nil), inject...), compute...) {
		if !c.IsRow() || c.Cols() != width {
			return nil, fmt.Errorf("%w: chord %d is %dx%d, want 1x%d", ErrInvalidSet, i, c.Rows(), c.Cols(), width)
		}
	}
	return &TrainingSet{Infos: infos, Inject: inject, Compute: compute}, nil
}

// FromSequence splits seq after prefix chords.
func FromSequence(seq *music.Sequence, prefix int) (*TrainingSet, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	inject, compute, err := seq.Split(prefix)
	if err != nil {
		return nil, err
	}
	return NewTrainingSet(seq.Infos, inject, compute)
}

// ChordDim returns the chord width.
func (s *TrainingSet) ChordDim() int { return s.Compute[0].Cols() }

// Ticks returns the number of chords to compute.
func (s *TrainingSet) Ticks() int { return len(s.Compute) }
