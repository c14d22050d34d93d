// Package gate implements the feed-forward multilayer unit used by the
// recurrent network. Each layer is one weight matrix whose last row holds
// the bias: inputs are extended with a constant 1 before every product.
package gate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/matrix"
)

// ErrInvalid reports a gate whose layers do not chain.
var ErrInvalid = errors.New("gate: invalid layout")

// Gate maps row vectors of width InputDim to row vectors of width OutputDim.
type Gate struct {
	inputDim   int
	outputDim  int
	layers     []*matrix.Matrix
	activation activation.Activation
}

// New builds a gate with explicit hidden widths; the layer count is
// len(hidden)+1. Weights start uniform in [-1, 1).
func New(inputDim, outputDim int, hidden []int, act activation.Activation, rng *rand.Rand) (*Gate, error) {
	widths := make([]int, 0, len(hidden)+2)
	widths = append(widths, inputDim)
	widths = append(widths, hidden...)
	widths = append(widths, outputDim)
	return build(widths, act, rng)
}

// NewAuto builds a gate with nbLayers layers whose widths interpolate
// linearly from inputDim to outputDim.
func NewAuto(inputDim, outputDim, nbLayers int, act activation.Activation, rng *rand.Rand) (*Gate, error) {
	if nbLayers <= 0 {
		return nil, fmt.Errorf("%w: %d layers", ErrInvalid, nbLayers)
	}
	return build(AutoWidths(inputDim, outputDim, nbLayers), act, rng)
}

// AutoWidths returns the nbLayers+1 activation widths used by NewAuto,
// starting with inputDim and ending with outputDim. Hidden widths are the
// rounded interpolation itself with no extra unit.
func AutoWidths(inputDim, outputDim, nbLayers int) []int {
	widths := make([]int, nbLayers+1)
	widths[0] = inputDim
	for i := 1; i <= nbLayers; i++ {
		x := float64(i) / float64(nbLayers)
		w := int(math.Round(x*float64(outputDim) + (1-x)*float64(inputDim)))
		widths[i] = max(w, 1)
	}
	widths[nbLayers] = outputDim
	return widths
}

func build(widths []int, act activation.Activation, rng *rand.Rand) (*Gate, error) {
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: width %d at position %d", ErrInvalid, w, i)
		}
	}
	layers := make([]*matrix.Matrix, len(widths)-1)
	for i := range layers {
		layers[i] = matrix.New(widths[i]+1, widths[i+1]).SetRandom(-1, 1, rng)
	}
	return &Gate{
		inputDim:   widths[0],
		outputDim:  widths[len(widths)-1],
		layers:     layers,
		activation: act,
	}, nil
}

// NewWithLayers wraps existing weight matrices after checking they chain:
// layers[0] has inputDim+1 rows, every next layer has one more row than the
// previous layer has columns, and the last layer has outputDim columns.
// The gate takes ownership of the matrices.
func NewWithLayers(inputDim, outputDim int, layers []*matrix.Matrix, act activation.Activation) (*Gate, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("%w: dimensions %d -> %d", ErrInvalid, inputDim, outputDim)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalid)
	}
	if layers[0].Rows() != inputDim+1 {
		return nil, fmt.Errorf("%w: layer 0 has %d rows, want %d", ErrInvalid, layers[0].Rows(), inputDim+1)
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].Rows() != layers[i-1].Cols()+1 {
			return nil, fmt.Errorf("%w: layer %d has %d rows, want %d", ErrInvalid, i, layers[i].Rows(), layers[i-1].Cols()+1)
		}
	}
	if last := layers[len(layers)-1]; last.Cols() != outputDim {
		return nil, fmt.Errorf("%w: last layer has %d cols, want %d", ErrInvalid, last.Cols(), outputDim)
	}
	return &Gate{inputDim: inputDim, outputDim: outputDim, layers: layers, activation: act}, nil
}

func (g *Gate) InputDim() int                     { return g.inputDim }
func (g *Gate) OutputDim() int                    { return g.outputDim }
func (g *Gate) NbLayers() int                     { return len(g.layers) }
func (g *Gate) Activation() activation.Activation { return g.activation }

// Layer returns the weight matrix of layer i. The matrix is owned by g.
func (g *Gate) Layer(i int) *matrix.Matrix { return g.layers[i] }

// NbWeights returns the total number of weights, biases included.
func (g *Gate) NbWeights() int {
	n := 0
	for _, l := range g.layers {
		n += l.Len()
	}
	return n
}

// Clone returns a deep copy.
func (g *Gate) Clone() *Gate {
	layers := make([]*matrix.Matrix, len(g.layers))
	for i, l := range g.layers {
		layers[i] = l.Clone()
	}
	return &Gate{inputDim: g.inputDim, outputDim: g.outputDim, layers: layers, activation: g.activation}
}

// CloneRandomized returns a deep copy with independent uniform noise of the
// given magnitude added to every weight.
func (g *Gate) CloneRandomized(magnitude float64, rng *rand.Rand) *Gate {
	layers := make([]*matrix.Matrix, len(g.layers))
	for i, l := range g.layers {
		layers[i] = l.CloneRandomized(magnitude, rng)
	}
	return &Gate{inputDim: g.inputDim, outputDim: g.outputDim, layers: layers, activation: g.activation}
}

func (g *Gate) checkInput(input *matrix.Matrix) {
	if !input.IsRow() || input.Cols() != g.inputDim {
		panic(fmt.Errorf("%w: gate input is %dx%d, want 1x%d", matrix.ErrShape, input.Rows(), input.Cols(), g.inputDim))
	}
}

// Compute runs the forward pass and returns the activated output.
func (g *Gate) Compute(input *matrix.Matrix) *matrix.Matrix {
	g.checkInput(input)
	out := matrix.RowAppended(input, 1)
	last := len(g.layers) - 1
	for i, l := range g.layers {
		out.MDot(l).Apply(g.activation.Forward)
		if i < last {
			out.RowAppend(1)
		}
	}
	return out
}

// Trace holds the intermediate values of one forward pass.
type Trace struct {
	// InputBias is the input with the bias element appended.
	InputBias *matrix.Matrix
	// Sums holds each layer's pre-activation product.
	Sums []*matrix.Matrix
	// Activated holds each layer's activated output with a bias element appended.
	Activated []*matrix.Matrix
	// Output is the final activated output, without bias.
	Output *matrix.Matrix
}

// ComputeVerbose runs the forward pass and records the trace needed by
// backpropagation.
func (g *Gate) ComputeVerbose(input *matrix.Matrix) *Trace {
	g.checkInput(input)
	tr := &Trace{
		InputBias: matrix.RowAppended(input, 1),
		Sums:      make([]*matrix.Matrix, len(g.layers)),
		Activated: make([]*matrix.Matrix, len(g.layers)),
	}
	prev := tr.InputBias
	for i, l := range g.layers {
		tr.Sums[i] = matrix.Dot(prev, l)
		tr.Activated[i] = g.activation.Activate(tr.Sums[i]).RowAppend(1)
		prev = tr.Activated[i]
	}
	tr.Output = g.activation.Activate(tr.Sums[len(g.layers)-1])
	return tr
}
