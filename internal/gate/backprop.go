package gate

import (
	"fmt"

	"cesure-forge/internal/matrix"
)

// Deltas holds one weight change per layer, shaped like the gate's layers.
type Deltas []*matrix.Matrix

// Clone returns a deep copy.
func (d Deltas) Clone() Deltas {
	if d == nil {
		return nil
	}
	out := make(Deltas, len(d))
	for i, m := range d {
		out[i] = m.Clone()
	}
	return out
}

// DivScalar divides every layer change by s in place.
func (d Deltas) DivScalar(s float64) Deltas {
	for _, m := range d {
		m.DivScalar(s)
	}
	return d
}

// Accumulate adds add into sum and returns the result. A nil sum starts as
// a copy of add.
func Accumulate(sum, add Deltas) Deltas {
	if sum == nil {
		return add.Clone()
	}
	if len(sum) != len(add) {
		panic(fmt.Errorf("%w: accumulating %d layer deltas into %d", matrix.ErrShape, len(add), len(sum)))
	}
	for i, m := range add {
		sum[i].Add(m)
	}
	return sum
}

// ComputeDeltas differentiates the gate by hand over a recorded trace and
// returns the error signal with respect to the gate input together with
// the weight changes, without touching the weights.
//
// For the last layer the local signal is signal ⊙ f'(sum). Each layer's
// change is -learningRate · (layer input with bias)ᵀ · local. Moving one
// layer down, the local signal is projected through the transposed weights,
// the bias column is dropped, and the result is multiplied by f' of that
// layer's sum. When prev is not nil every change also receives
// momentum · prev.
func (g *Gate) ComputeDeltas(tr *Trace, signal *matrix.Matrix, learningRate float64, prev Deltas, momentum float64) (*matrix.Matrix, Deltas) {
	n := len(g.layers)
	if !signal.IsRow() || signal.Cols() != g.outputDim {
		panic(fmt.Errorf("%w: signal is %dx%d, want 1x%d", matrix.ErrShape, signal.Rows(), signal.Cols(), g.outputDim))
	}
	if tr == nil || len(tr.Sums) != n || len(tr.Activated) != n || tr.InputBias == nil {
		panic(fmt.Errorf("%w: trace does not match a %d-layer gate", matrix.ErrShape, n))
	}
	if prev != nil && len(prev) != n {
		panic(fmt.Errorf("%w: %d previous deltas for %d layers", matrix.ErrShape, len(prev), n))
	}

	deltas := make(Deltas, n)
	local := matrix.Hadamard(signal, g.activation.Derivate(tr.Sums[n-1]))
	for i := n - 1; i >= 0; i-- {
		in := tr.InputBias
		if i > 0 {
			in = tr.Activated[i-1]
		}
		deltas[i] = matrix.Dot(matrix.Transpose(in), local).Scale(-learningRate)
		if i > 0 {
			local = matrix.Dot(local, matrix.Transpose(g.layers[i])).DeleteLastCol()
			local.PMult(g.activation.Derivate(tr.Sums[i-1]))
		}
	}

	upstream := matrix.Dot(local, matrix.Transpose(g.layers[0])).DeleteLastCol()
	if !upstream.IsFinite() {
		panic(fmt.Errorf("%w: upstream signal after backpropagation", matrix.ErrNotFinite))
	}

	if prev != nil {
		for i, d := range deltas {
			d.Add(matrix.Scaled(prev[i], momentum))
		}
	}
	return upstream, deltas
}

// Backpropagate computes the changes like ComputeDeltas and adds them to
// the weights. The returned upstream signal is always the one ComputeDeltas
// returns, projected through the weights as they were before the update, so
// the in-place and deferred variants hand the same signal upstream.
func (g *Gate) Backpropagate(tr *Trace, signal *matrix.Matrix, learningRate float64, prev Deltas, momentum float64) (*matrix.Matrix, Deltas) {
	upstream, deltas := g.ComputeDeltas(tr, signal, learningRate, prev, momentum)
	g.ApplyChanges(deltas)
	return upstream, deltas
}

// ApplyChanges adds one change per layer onto the weights.
func (g *Gate) ApplyChanges(d Deltas) {
	if len(d) != len(g.layers) {
		panic(fmt.Errorf("%w: %d deltas for %d layers", matrix.ErrShape, len(d), len(g.layers)))
	}
	for i, l := range g.layers {
		l.Add(d[i])
	}
}
