package activation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cesure-forge/internal/matrix"
)

var samples = []float64{-1e6, -50, -3, -1, -0.25, 0, 0.25, 1, 3, 50, 1e6}

func TestSigmoidShape(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid.Forward(0))
	for _, x := range samples {
		y := Sigmoid.Forward(x)
		assert.Greater(t, y, 0.0, "x=%v", x)
		assert.Less(t, y, 1.0, "x=%v", x)
	}
	// x/(1+|x|) enters with a negative sign, so the curve falls as x grows
	// and its derivative stays strictly negative.
	for i := 1; i < len(samples); i++ {
		assert.Less(t, Sigmoid.Forward(samples[i]), Sigmoid.Forward(samples[i-1]))
	}
	for _, x := range samples {
		assert.Less(t, Sigmoid.Derivative(x), 0.0)
	}
}

func TestTanhShape(t *testing.T) {
	assert.Equal(t, 0.0, Tanh.Forward(0))
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, Tanh.Forward(samples[i]), Tanh.Forward(samples[i-1]))
	}
	for _, x := range samples {
		y := Tanh.Forward(x)
		assert.Greater(t, y, -1.0)
		assert.Less(t, y, 1.0)
		assert.Greater(t, Tanh.Derivative(x), 0.0)
	}
}

func TestExactFormulas(t *testing.T) {
	for _, x := range []float64{-2, -0.5, 0.5, 2} {
		d := 1 + math.Abs(x)
		assert.Equal(t, 0.5-0.5*(x/d), Sigmoid.Forward(x))
		assert.Equal(t, -0.5/(d*d), Sigmoid.Derivative(x))
		assert.Equal(t, x/d, Tanh.Forward(x))
		assert.Equal(t, 1/(d*d), Tanh.Derivative(x))
	}
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, a := range []Activation{Sigmoid, Tanh} {
		for _, x := range []float64{-3, -0.7, 0.4, 2.5} {
			numeric := (a.Forward(x+h) - a.Forward(x-h)) / (2 * h)
			assert.InDelta(t, numeric, a.Derivative(x), 1e-6, "%s at %v", a, x)
		}
	}
}

func TestActivateMatrix(t *testing.T) {
	in := matrix.RowOf(-1, 0, 1)
	out := Tanh.Activate(in)
	assert.Equal(t, []float64{-0.5, 0, 0.5}, out.Values())
	assert.Equal(t, []float64{-1, 0, 1}, in.Values())
	assert.Equal(t, []float64{0.25, 1, 0.25}, Tanh.Derivate(in).Values())
}

func TestTagRoundTrip(t *testing.T) {
	for _, a := range []Activation{Sigmoid, Tanh} {
		text, err := a.MarshalText()
		require.NoError(t, err)
		var got Activation
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, a, got)
	}
	assert.Equal(t, "sigmoid", Sigmoid.String())
	assert.Equal(t, "tanh", Tanh.String())

	_, err := Parse("relu")
	assert.Error(t, err)
}
