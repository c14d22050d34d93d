// Package activation provides the two rational nonlinearities used by the
// gates. Both avoid exponentials: they divide by 1+|x| instead.
package activation

import (
	"fmt"
	"math"

	"cesure-forge/internal/matrix"
)

// Activation selects a nonlinearity and its derivative.
type Activation uint8

const (
	// Sigmoid is 0.5 - 0.5*x/(1+|x|), ranging over (0, 1).
	Sigmoid Activation = iota
	// Tanh is x/(1+|x|), ranging over (-1, 1).
	Tanh
)

// Parse maps a serialized tag to an Activation.
func Parse(tag string) (Activation, error) {
	switch tag {
	case "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	default:
		return 0, fmt.Errorf("activation: unknown tag %q", tag)
	}
}

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	default:
		return fmt.Sprintf("activation(%d)", uint8(a))
	}
}

func (a Activation) MarshalText() ([]byte, error) {
	switch a {
	case Sigmoid, Tanh:
		return []byte(a.String()), nil
	default:
		return nil, fmt.Errorf("activation: unknown kind %d", uint8(a))
	}
}

func (a *Activation) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Forward evaluates the nonlinearity at x.
func (a Activation) Forward(x float64) float64 {
	switch a {
	case Sigmoid:
		return 0.5 - 0.5*(x/(1+math.Abs(x)))
	case Tanh:
		return x / (1 + math.Abs(x))
	default:
		panic(fmt.Sprintf("activation: unknown kind %d", uint8(a)))
	}
}

// Derivative evaluates the derivative of Forward at x.
func (a Activation) Derivative(x float64) float64 {
	d := 1 + math.Abs(x)
	switch a {
	case Sigmoid:
		return -0.5 / (d * d)
	case Tanh:
		return 1 / (d * d)
	default:
		panic(fmt.Sprintf("activation: unknown kind %d", uint8(a)))
	}
}

// Activate returns a new matrix with Forward applied to every element.
func (a Activation) Activate(m *matrix.Matrix) *matrix.Matrix {
	return m.Clone().Apply(a.Forward)
}

// Derivate returns a new matrix with Derivative applied to every element.
func (a Activation) Derivate(m *matrix.Matrix) *matrix.Matrix {
	return m.Clone().Apply(a.Derivative)
}
