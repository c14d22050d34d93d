package gate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/matrix"
)

func newTestGate(t *testing.T, in, out int, hidden []int, act activation.Activation, seed int64) *Gate {
	t.Helper()
	g, err := New(in, out, hidden, act, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return g
}

func TestNewLayerShapes(t *testing.T) {
	g := newTestGate(t, 5, 3, []int{4, 7}, activation.Sigmoid, 1)
	require.Equal(t, 3, g.NbLayers())
	assert.Equal(t, [2]int{6, 4}, [2]int{g.Layer(0).Rows(), g.Layer(0).Cols()})
	assert.Equal(t, [2]int{5, 7}, [2]int{g.Layer(1).Rows(), g.Layer(1).Cols()})
	assert.Equal(t, [2]int{8, 3}, [2]int{g.Layer(2).Rows(), g.Layer(2).Cols()})
	assert.Equal(t, 6*4+5*7+8*3, g.NbWeights())
	for i := 0; i < g.NbLayers(); i++ {
		for _, v := range g.Layer(i).Values() {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.Less(t, v, 1.0)
		}
	}
}

func TestNewAutoInterpolatesWidths(t *testing.T) {
	assert.Equal(t, []int{10, 8, 6, 4, 2}, AutoWidths(10, 2, 4), "hidden widths carry no extra unit")
	assert.Equal(t, []int{3, 3}, AutoWidths(3, 3, 1))

	g, err := NewAuto(10, 2, 4, activation.Tanh, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	rows := []int{11, 9, 7, 5}
	cols := []int{8, 6, 4, 2}
	for i := 0; i < 4; i++ {
		assert.Equal(t, rows[i], g.Layer(i).Rows())
		assert.Equal(t, cols[i], g.Layer(i).Cols())
	}

	_, err = NewAuto(10, 2, 0, activation.Tanh, rand.New(rand.NewSource(2)))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewWithLayersValidates(t *testing.T) {
	_, err := NewWithLayers(2, 1, []*matrix.Matrix{matrix.New(3, 4), matrix.New(5, 1)}, activation.Sigmoid)
	require.NoError(t, err)

	_, err = NewWithLayers(2, 1, []*matrix.Matrix{matrix.New(2, 4), matrix.New(5, 1)}, activation.Sigmoid)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = NewWithLayers(2, 1, []*matrix.Matrix{matrix.New(3, 4), matrix.New(4, 1)}, activation.Sigmoid)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = NewWithLayers(2, 2, []*matrix.Matrix{matrix.New(3, 4), matrix.New(5, 1)}, activation.Sigmoid)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = NewWithLayers(2, 1, nil, activation.Sigmoid)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestComputeHandWorked(t *testing.T) {
	// One hidden unit: h = tanh(2*1 + 0) = 2/3, out = tanh(3*h - 1) = 1/2.
	g, err := NewWithLayers(1, 1, []*matrix.Matrix{
		matrix.ColOf(2, 0),
		matrix.ColOf(3, -1),
	}, activation.Tanh)
	require.NoError(t, err)

	out := g.Compute(matrix.RowOf(1))
	require.Equal(t, 1, out.Cols())
	assert.InDelta(t, 0.5, out.At(0, 0), 1e-12)

	tr := g.ComputeVerbose(matrix.RowOf(1))
	assert.Equal(t, []float64{1, 1}, tr.InputBias.Values())
	assert.Equal(t, []float64{2}, tr.Sums[0].Values())
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1}, tr.Activated[0].Values(), 1e-12)
	assert.InDelta(t, 1.0, tr.Sums[1].At(0, 0), 1e-12)
	assert.Equal(t, 2, tr.Activated[1].Cols(), "last activated vector keeps its bias element")
	assert.True(t, tr.Output.Equal(out))
}

func TestComputeVerboseMatchesCompute(t *testing.T) {
	g := newTestGate(t, 6, 4, []int{5, 3}, activation.Sigmoid, 7)
	in := matrix.NewRow(6).SetRandom(-1, 1, rand.New(rand.NewSource(8)))
	assert.True(t, g.Compute(in).Equal(g.ComputeVerbose(in).Output))
}

func TestComputeRejectsWrongInput(t *testing.T) {
	g := newTestGate(t, 3, 2, nil, activation.Sigmoid, 1)
	for _, in := range []*matrix.Matrix{matrix.NewRow(2), matrix.NewCol(3), matrix.New(2, 3)} {
		func() {
			defer func() {
				err, ok := recover().(error)
				require.True(t, ok)
				assert.True(t, errors.Is(err, matrix.ErrShape))
			}()
			g.Compute(in)
		}()
	}
}

func TestSingleLayerDeltaByHand(t *testing.T) {
	const (
		w0 = 0.4
		b  = -0.3
		x  = 0.7
		s  = 0.25
		lr = 0.1
	)
	g, err := NewWithLayers(1, 1, []*matrix.Matrix{matrix.ColOf(w0, b)}, activation.Sigmoid)
	require.NoError(t, err)

	tr := g.ComputeVerbose(matrix.RowOf(x))
	upstream, deltas := g.ComputeDeltas(tr, matrix.RowOf(s), lr, nil, 0)

	sum := x*w0 + b
	deriv := -0.5 / math.Pow(1+math.Abs(sum), 2)
	local := s * deriv
	require.Len(t, deltas, 1)
	require.Equal(t, 2, deltas[0].Rows())
	require.Equal(t, 1, deltas[0].Cols())
	assert.InDelta(t, -lr*x*local, deltas[0].At(0, 0), 1e-9)
	assert.InDelta(t, -lr*1*local, deltas[0].At(1, 0), 1e-9)
	require.Equal(t, 1, upstream.Cols())
	assert.InDelta(t, local*w0, upstream.At(0, 0), 1e-9)

	assert.Equal(t, []float64{w0, b}, g.Layer(0).Values(), "ComputeDeltas must not touch weights")
}

// loss is e·Compute(x); its gradient with respect to the output is e.
func loss(g *Gate, x, e *matrix.Matrix) float64 {
	out := g.Compute(x)
	sum := 0.0
	for i, v := range out.Values() {
		sum += v * e.At(0, i)
	}
	return sum
}

func TestDeltasMatchFiniteDifferences(t *testing.T) {
	const (
		lr = 0.5
		h  = 1e-6
	)
	for _, act := range []activation.Activation{activation.Sigmoid, activation.Tanh} {
		g := newTestGate(t, 3, 2, []int{4, 3}, act, 42)
		rng := rand.New(rand.NewSource(43))
		x := matrix.NewRow(3).SetRandom(-1, 1, rng)
		e := matrix.NewRow(2).SetRandom(-1, 1, rng)

		upstream, deltas := g.ComputeDeltas(g.ComputeVerbose(x), e, lr, nil, 0)

		for li := 0; li < g.NbLayers(); li++ {
			layer := g.Layer(li)
			for r := 0; r < layer.Rows(); r++ {
				for c := 0; c < layer.Cols(); c++ {
					orig := layer.At(r, c)
					layer.Set(r, c, orig+h)
					up := loss(g, x, e)
					layer.Set(r, c, orig-h)
					down := loss(g, x, e)
					layer.Set(r, c, orig)
					grad := (up - down) / (2 * h)
					assert.InDelta(t, -lr*grad, deltas[li].At(r, c), 1e-6, "%s layer %d (%d,%d)", act, li, r, c)
				}
			}
		}

		for i := 0; i < 3; i++ {
			orig := x.At(0, i)
			x.Set(0, i, orig+h)
			up := loss(g, x, e)
			x.Set(0, i, orig-h)
			down := loss(g, x, e)
			x.Set(0, i, orig)
			assert.InDelta(t, (up-down)/(2*h), upstream.At(0, i), 1e-6, "%s input %d", act, i)
		}
	}
}

func TestMomentumAddsPreviousDeltas(t *testing.T) {
	g := newTestGate(t, 2, 2, []int{3}, activation.Tanh, 5)
	x := matrix.RowOf(0.2, -0.4)
	e := matrix.RowOf(0.3, 0.1)
	tr := g.ComputeVerbose(x)

	_, base := g.ComputeDeltas(tr, e, 0.1, nil, 0)
	prev := Deltas{matrix.New(3, 3).SetRandom(-1, 1, rand.New(rand.NewSource(1))), matrix.New(4, 2).SetRandom(-1, 1, rand.New(rand.NewSource(2)))}
	_, withMomentum := g.ComputeDeltas(tr, e, 0.1, prev, 0.9)

	for i := range base {
		want := matrix.Sum(base[i], matrix.Scaled(prev[i], 0.9))
		assert.InDeltaSlice(t, want.Values(), withMomentum[i].Values(), 1e-12)
	}
}

func TestBackpropagateAppliesChanges(t *testing.T) {
	g := newTestGate(t, 2, 1, []int{2}, activation.Sigmoid, 9)
	before := g.Clone()
	tr := g.ComputeVerbose(matrix.RowOf(1, -1))

	wantUp, wantDeltas := before.ComputeDeltas(tr, matrix.RowOf(0.5), 0.2, nil, 0)
	up, deltas := g.Backpropagate(tr, matrix.RowOf(0.5), 0.2, nil, 0)

	assert.True(t, up.Equal(wantUp), "upstream is projected through the weights before the update")
	for i := range deltas {
		assert.True(t, deltas[i].Equal(wantDeltas[i]))
		assert.InDeltaSlice(t, matrix.Sum(before.Layer(i), deltas[i]).Values(), g.Layer(i).Values(), 1e-15)
	}
}

func TestBackpropagateRejectsBadSignal(t *testing.T) {
	g := newTestGate(t, 2, 3, nil, activation.Sigmoid, 1)
	tr := g.ComputeVerbose(matrix.RowOf(1, 2))
	require.Panics(t, func() { g.ComputeDeltas(tr, matrix.NewRow(2), 0.1, nil, 0) })
	require.Panics(t, func() { g.ComputeDeltas(&Trace{}, matrix.NewRow(3), 0.1, nil, 0) })
	require.Panics(t, func() { g.ApplyChanges(Deltas{}) })
}

func TestBackpropagateDetectsDivergence(t *testing.T) {
	g, err := NewWithLayers(1, 1, []*matrix.Matrix{matrix.ColOf(1, 0)}, activation.Tanh)
	require.NoError(t, err)
	tr := g.ComputeVerbose(matrix.RowOf(0))
	defer func() {
		err, ok := recover().(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, matrix.ErrNotFinite)
	}()
	g.ComputeDeltas(tr, matrix.RowOf(math.Inf(1)), 0.1, nil, 0)
}

func TestAccumulateAndDivide(t *testing.T) {
	a := Deltas{matrix.RowOf(1, 2)}
	b := Deltas{matrix.RowOf(3, 4)}
	sum := Accumulate(nil, a)
	sum = Accumulate(sum, b)
	sum.DivScalar(2)
	assert.Equal(t, []float64{2, 3}, sum[0].Values())
	assert.Equal(t, []float64{1, 2}, a[0].Values(), "first accumulation must copy")
}

func TestCloneRandomizedKeepsSource(t *testing.T) {
	g := newTestGate(t, 3, 2, []int{2}, activation.Sigmoid, 3)
	before := g.Clone()
	mutated := g.CloneRandomized(0.5, rand.New(rand.NewSource(4)))
	for i := 0; i < g.NbLayers(); i++ {
		assert.True(t, g.Layer(i).Equal(before.Layer(i)))
		assert.False(t, mutated.Layer(i).Equal(before.Layer(i)))
	}
}

func TestTextRoundTrip(t *testing.T) {
	g := newTestGate(t, 4, 3, []int{5, 2}, activation.Tanh, 12)
	text, err := g.MarshalText()
	require.NoError(t, err)

	var got Gate
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, g.InputDim(), got.InputDim())
	assert.Equal(t, g.OutputDim(), got.OutputDim())
	assert.Equal(t, activation.Tanh, got.Activation())
	require.Equal(t, g.NbLayers(), got.NbLayers())
	for i := 0; i < g.NbLayers(); i++ {
		assert.True(t, got.Layer(i).Equal(g.Layer(i)))
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no layers":     "1 1 1 sigmoid",
		"short header":  "1 1 1\n2 1 0.5 0.5",
		"bad tag":       "1 1 1 relu\n2 1 0.5 0.5",
		"layer count":   "1 1 2 sigmoid\n2 1 0.5 0.5",
		"bad matrix":    "1 1 1 sigmoid\n2 1 0.5",
		"broken chain":  "2 1 1 sigmoid\n2 1 0.5 0.5",
		"bad dimension": "x 1 1 sigmoid\n2 1 0.5 0.5",
	}
	for name, text := range cases {
		var g Gate
		assert.ErrorIs(t, g.UnmarshalText([]byte(text)), ErrMalformed, name)
	}
}
