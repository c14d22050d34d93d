// Package cesure composes two gates into a recurrent chord generator.
//
// The output gate reads the descriptor and the context and produces a
// chord. The memory gate reads the descriptor, the context and a chord and
// produces the next context. Both are driven one tick at a time.
package cesure

import (
	"fmt"
	"math/rand"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/dataset"
	"cesure-forge/internal/errorcalc"
	"cesure-forge/internal/gate"
	"cesure-forge/internal/matrix"
	"cesure-forge/internal/music"
)

// DefaultLayers is the layer count of each gate in DefaultArchitecture.
const DefaultLayers = 10

// Architecture sizes a new network.
type Architecture struct {
	InfosDim     int
	ContextDim   int
	OutputDim    int
	OutputLayers int
	MemoryLayers int
	Activation   activation.Activation
}

// DefaultArchitecture returns the chord layout with the given context size.
func DefaultArchitecture(contextDim int) Architecture {
	return Architecture{
		InfosDim:     music.DescriptorDim,
		ContextDim:   contextDim,
		OutputDim:    music.ChordDim,
		OutputLayers: DefaultLayers,
		MemoryLayers: DefaultLayers,
		Activation:   activation.Sigmoid,
	}
}

// Cesure is the recurrent network together with the state of the sequence
// it is running.
type Cesure struct {
	infosDim   int
	contextDim int
	outputDim  int
	output     *gate.Gate
	memory     *gate.Gate
	infos      *matrix.Matrix
	context    *matrix.Matrix
}

// New builds a network whose gate widths interpolate between their input
// and output sizes.
func New(arch Architecture, rng *rand.Rand) (*Cesure, error) {
	if arch.InfosDim <= 0 || arch.ContextDim <= 0 || arch.OutputDim <= 0 {
		return nil, fmt.Errorf("%w: dimensions %d/%d/%d", gate.ErrInvalid, arch.InfosDim, arch.ContextDim, arch.OutputDim)
	}
	infosContext := arch.InfosDim + arch.ContextDim
	output, err := gate.NewAuto(infosContext, arch.OutputDim, arch.OutputLayers, arch.Activation, rng)
	if err != nil {
		return nil, fmt.Errorf("output gate: %w", err)
	}
	memory, err := gate.NewAuto(infosContext+arch.OutputDim, arch.ContextDim, arch.MemoryLayers, arch.Activation, rng)
	if err != nil {
		return nil, fmt.Errorf("memory gate: %w", err)
	}
	return NewFromGates(arch.InfosDim, arch.ContextDim, arch.OutputDim, output, memory)
}

// NewFromGates wraps existing gates after checking their widths.
func NewFromGates(infosDim, contextDim, outputDim int, output, memory *gate.Gate) (*Cesure, error) {
	if output.InputDim() != infosDim+contextDim || output.OutputDim() != outputDim {
		return nil, fmt.Errorf("%w: output gate is %d->%d, want %d->%d",
			gate.ErrInvalid, output.InputDim(), output.OutputDim(), infosDim+contextDim, outputDim)
	}
	if memory.InputDim() != infosDim+contextDim+outputDim || memory.OutputDim() != contextDim {
		return nil, fmt.Errorf("%w: memory gate is %d->%d, want %d->%d",
			gate.ErrInvalid, memory.InputDim(), memory.OutputDim(), infosDim+contextDim+outputDim, contextDim)
	}
	return &Cesure{
		infosDim:   infosDim,
		contextDim: contextDim,
		outputDim:  outputDim,
		output:     output,
		memory:     memory,
		infos:      matrix.NewRow(infosDim),
		context:    matrix.NewRow(contextDim),
	}, nil
}

func (c *Cesure) InfosDim() int   { return c.infosDim }
func (c *Cesure) ContextDim() int { return c.contextDim }
func (c *Cesure) OutputDim() int  { return c.outputDim }

// OutputGate returns the gate producing chords. It is owned by c.
func (c *Cesure) OutputGate() *gate.Gate { return c.output }

// MemoryGate returns the gate producing contexts. It is owned by c.
func (c *Cesure) MemoryGate() *gate.Gate { return c.memory }

// NbWeights returns the weight count of both gates.
func (c *Cesure) NbWeights() int { return c.output.NbWeights() + c.memory.NbWeights() }

// Context returns a copy of the current context.
func (c *Cesure) Context() *matrix.Matrix { return c.context.Clone() }

// Clone returns a deep copy, sequence state included.
func (c *Cesure) Clone() *Cesure {
	return &Cesure{
		infosDim:   c.infosDim,
		contextDim: c.contextDim,
		outputDim:  c.outputDim,
		output:     c.output.Clone(),
		memory:     c.memory.Clone(),
		infos:      c.infos.Clone(),
		context:    c.context.Clone(),
	}
}

// CopyFrom replaces c with a deep copy of src.
func (c *Cesure) CopyFrom(src *Cesure) { *c = *src.Clone() }

// CloneRandomized returns a deep copy whose weights carry independent
// uniform noise of the given magnitude.
func (c *Cesure) CloneRandomized(magnitude float64, rng *rand.Rand) *Cesure {
	clone := c.Clone()
	clone.output = c.output.CloneRandomized(magnitude, rng)
	clone.memory = c.memory.CloneRandomized(magnitude, rng)
	return clone
}

// NewSequence stores the descriptor and zeroes the context.
func (c *Cesure) NewSequence(infos *matrix.Matrix) {
	if !infos.IsRow() || infos.Cols() != c.infosDim {
		panic(fmt.Errorf("%w: descriptor is %dx%d, want 1x%d", matrix.ErrShape, infos.Rows(), infos.Cols(), c.infosDim))
	}
	c.infos.CopyFrom(infos)
	c.context.SetZero()
}

// InjectNext advances the context with a known chord.
func (c *Cesure) InjectNext(chord *matrix.Matrix) {
	if !chord.IsRow() || chord.Cols() != c.outputDim {
		panic(fmt.Errorf("%w: chord is %dx%d, want 1x%d", matrix.ErrShape, chord.Rows(), chord.Cols(), c.outputDim))
	}
	c.context = c.memory.Compute(matrix.RowConcat(c.infos, c.context, chord))
}

// ComputeNext produces the next chord and advances the context with it.
func (c *Cesure) ComputeNext() *matrix.Matrix {
	infosContext := matrix.RowConcat(c.infos, c.context)
	out := c.output.Compute(infosContext)
	c.context = c.memory.Compute(matrix.RowConcat(infosContext, out))
	return out
}

// Step holds the traces of one ComputeNextVerbose call.
type Step struct {
	Output *gate.Trace
	Memory *gate.Trace
}

// ComputeNextVerbose performs ComputeNext and keeps both gates' traces.
func (c *Cesure) ComputeNextVerbose() *Step {
	infosContext := matrix.RowConcat(c.infos, c.context)
	out := c.output.ComputeVerbose(infosContext)
	mem := c.memory.ComputeVerbose(matrix.RowConcat(infosContext, out.Output))
	c.context = mem.Output.Clone()
	return &Step{Output: out, Memory: mem}
}

// ContextSignal returns the context part of an upstream signal from either
// gate: both inputs start with the descriptor followed by the context.
func (c *Cesure) ContextSignal(signal *matrix.Matrix) *matrix.Matrix {
	if !signal.IsRow() || signal.Cols() < c.infosDim+c.contextDim {
		panic(fmt.Errorf("%w: signal is %dx%d, want at least 1x%d", matrix.ErrShape, signal.Rows(), signal.Cols(), c.infosDim+c.contextDim))
	}
	return matrix.RowSlice(signal, c.infosDim, c.infosDim+c.contextDim)
}

// CalculateErrorSum replays the set's injected chords, then sums the mean
// absolute error of every computed chord against the set.
func (c *Cesure) CalculateErrorSum(set *dataset.TrainingSet, calc errorcalc.Kind) float64 {
	c.NewSequence(set.Infos)
	for _, chord := range set.Inject {
		c.InjectNext(chord)
	}
	sum := 0.0
	for _, ideal := range set.Compute {
		sum += calc.Calculate(c.ComputeNext(), ideal).AbsAvg()
	}
	return sum
}

// CalculateErrorSumMulti sums CalculateErrorSum over sets.
func (c *Cesure) CalculateErrorSumMulti(sets []*dataset.TrainingSet, calc errorcalc.Kind) float64 {
	sum := 0.0
	for _, set := range sets {
		sum += c.CalculateErrorSum(set, calc)
	}
	return sum
}

// Generate replays inject and returns the next ticks raw outputs.
func (c *Cesure) Generate(infos *matrix.Matrix, inject []*matrix.Matrix, ticks int) []*matrix.Matrix {
	c.NewSequence(infos)
	for _, chord := range inject {
		c.InjectNext(chord)
	}
	outputs := make([]*matrix.Matrix, ticks)
	for i := range outputs {
		outputs[i] = c.ComputeNext()
	}
	return outputs
}
