// Package errorcalc holds the per-unit error functions that compare a
// produced chord with its ideal 0/1 chord.
package errorcalc

import (
	"errors"
	"fmt"

	"cesure-forge/internal/matrix"
)

// ErrIdealNotBinary is wrapped by the panic raised when an ideal element is
// neither 0 nor 1.
var ErrIdealNotBinary = errors.New("errorcalc: ideal element is not 0 or 1")

// Constants of the smart calculation.
const (
	SmartThreshold  = 0.9
	SmartSlope      = 9.0
	SmartOffset     = 8.0
	SmartOffDivisor = 12.0
)

// Kind selects an error calculation.
type Kind uint8

const (
	// Basic is output-1 on an active ideal and output on an inactive one.
	Basic Kind = iota
	// OnlyOn is Basic with zero error on inactive ideals.
	OnlyOn
	// Smart amplifies confident false positives and damps the rest of the
	// inactive branch.
	Smart
)

var names = [...]string{Basic: "basic", OnlyOn: "only-on", Smart: "smart"}

// Parse returns the Kind named by tag.
func Parse(tag string) (Kind, error) {
	for k, name := range names {
		if name == tag {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown error calculation %q", tag)
}

func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(names) {
		return nil, fmt.Errorf("unknown error calculation %d", uint8(k))
	}
	return []byte(names[k]), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Unit returns the error of a single output element against its ideal.
func (k Kind) Unit(output, ideal float64) float64 {
	switch ideal {
	case 1:
		return output - 1
	case 0:
	default:
		panic(fmt.Errorf("%w: %v", ErrIdealNotBinary, ideal))
	}
	switch k {
	case OnlyOn:
		return 0
	case Smart:
		if output > SmartThreshold {
			return (SmartSlope*output - SmartOffset) / SmartOffDivisor
		}
		return output / SmartSlope / SmartOffDivisor
	default:
		return output
	}
}

// Calculate returns the elementwise error of output against ideal. Both must
// share a shape.
func (k Kind) Calculate(output, ideal *matrix.Matrix) *matrix.Matrix {
	if !output.SameShape(ideal) {
		panic(fmt.Errorf("%w: output %dx%d against ideal %dx%d",
			matrix.ErrShape, output.Rows(), output.Cols(), ideal.Rows(), ideal.Cols()))
	}
	out := matrix.New(output.Rows(), output.Cols())
	for r := 0; r < output.Rows(); r++ {
		for c := 0; c < output.Cols(); c++ {
			out.Set(r, c, k.Unit(output.At(r, c), ideal.At(r, c)))
		}
	}
	return out
}
