package trainer

import (
	"context"
	"fmt"

	"cesure-forge/internal/cesure"
	"cesure-forge/internal/control"
	"cesure-forge/internal/dataset"
	"cesure-forge/internal/errorcalc"
	"cesure-forge/internal/gate"
	"cesure-forge/internal/matrix"
)

// BPTTOptions configures the gradient loops.
type BPTTOptions struct {
	Options
	LearningRate float64
	Momentum     float64
	// Depth bounds how many past memory steps receive a signal. Values
	// below 1 walk back to the start of the sequence.
	Depth int
}

func (o *BPTTOptions) settings() (control.Settings, error) {
	if o.LearningRate < 0 || o.Momentum < 0 {
		return control.Settings{}, fmt.Errorf("trainer: learning rate and momentum must be >= 0 (got %v, %v)", o.LearningRate, o.Momentum)
	}
	return control.Settings{
		LearningRate: o.LearningRate,
		Momentum:     o.Momentum,
		Iterations:   o.Iterations,
		Verbose:      true,
	}, nil
}

// reaches reports whether the memory step back steps behind the current one
// is within depth.
func reaches(depth, back int) bool { return depth <= 0 || back <= depth }

// TrainBPTT runs epoch backpropagation through time. Every epoch replays
// each set, averages the changes of both gates over the time steps that
// produced them and applies them once. The memory changes of one step are
// the sum over its look-back walk.
func TrainBPTT(ctx context.Context, c *cesure.Cesure, sets []*dataset.TrainingSet, opts BPTTOptions) (Result, error) {
	if err := checkSets(sets); err != nil {
		return Result{}, err
	}
	s, err := opts.settings()
	if err != nil {
		return Result{}, err
	}

	return iterate(ctx, &opts.Options, &s, AlgorithmBPTT, func(int) (Epoch, string) {
		lr, momentum := s.LearningRate, s.Momentum
		var outSum, memSum gate.Deltas
		outCount, memCount := 0, 0
		errSum := 0.0

		for _, set := range sets {
			steps, errs, sum := replay(c, set, opts.Loss)
			errSum += sum

			var prevOut, prevMem gate.Deltas
			for i := len(steps) - 1; i >= 0; i-- {
				up, d := c.OutputGate().ComputeDeltas(steps[i].Output, errs[i], lr, prevOut, momentum)
				outSum = gate.Accumulate(outSum, d)
				outCount++
				prevOut = d

				if i == 0 {
					continue
				}
				// One memory contribution per step, whatever the walk length.
				signal := c.ContextSignal(up)
				for k := i - 1; k >= 0 && reaches(opts.Depth, i-k); k-- {
					up, d := c.MemoryGate().ComputeDeltas(steps[k].Memory, signal, lr, prevMem, momentum)
					memSum = gate.Accumulate(memSum, d)
					prevMem = d
					signal = c.ContextSignal(up)
				}
				memCount++
			}
		}

		c.OutputGate().ApplyChanges(outSum.DivScalar(float64(outCount)))
		if memCount > 0 {
			c.MemoryGate().ApplyChanges(memSum.DivScalar(float64(memCount)))
		}
		return Epoch{Error: errSum, LearningRate: lr, Momentum: momentum}, ""
	})
}

// replay runs set through c keeping every trace, and returns the error
// signals with the sum of their mean absolute values.
func replay(c *cesure.Cesure, set *dataset.TrainingSet, loss errorcalc.Kind) ([]*cesure.Step, []*matrix.Matrix, float64) {
	c.NewSequence(set.Infos)
	for _, chord := range set.Inject {
		c.InjectNext(chord)
	}
	steps := make([]*cesure.Step, len(set.Compute))
	errs := make([]*matrix.Matrix, len(set.Compute))
	sum := 0.0
	for i, ideal := range set.Compute {
		steps[i] = c.ComputeNextVerbose()
		errs[i] = loss.Calculate(steps[i].Output.Output, ideal)
		sum += errs[i].AbsAvg()
	}
	return steps, errs, sum
}

// TrainBPTTOnline updates the network after every tick. The output gate
// learns from the tick's error right away; the memory gate receives the
// context part of that signal through at most Depth past steps.
func TrainBPTTOnline(ctx context.Context, c *cesure.Cesure, sets []*dataset.TrainingSet, opts BPTTOptions) (Result, error) {
	if err := checkSets(sets); err != nil {
		return Result{}, err
	}
	s, err := opts.settings()
	if err != nil {
		return Result{}, err
	}

	// Momentum carries over ticks, sets and epochs.
	var prevOut, prevMem gate.Deltas
	return iterate(ctx, &opts.Options, &s, AlgorithmBPTTOnline, func(int) (Epoch, string) {
		lr, momentum := s.LearningRate, s.Momentum
		errSum := 0.0

		for _, set := range sets {
			c.NewSequence(set.Infos)
			for _, chord := range set.Inject {
				c.InjectNext(chord)
			}
			traces := make([]*gate.Trace, 0, len(set.Compute))
			for tick, ideal := range set.Compute {
				st := c.ComputeNextVerbose()
				e := opts.Loss.Calculate(st.Output.Output, ideal)
				errSum += e.AbsAvg()

				var up *matrix.Matrix
				up, prevOut = c.OutputGate().Backpropagate(st.Output, e, lr, prevOut, momentum)

				signal := c.ContextSignal(up)
				var changes gate.Deltas
				for k := tick - 1; k >= 0 && reaches(opts.Depth, tick-k); k-- {
					var d gate.Deltas
					up, d = c.MemoryGate().ComputeDeltas(traces[k], signal, lr, prevMem, momentum)
					changes = gate.Accumulate(changes, d)
					prevMem = d
					signal = c.ContextSignal(up)
				}
				if changes != nil {
					c.MemoryGate().ApplyChanges(changes)
				}
				traces = append(traces, st.Memory)
			}
		}
		return Epoch{Error: errSum, LearningRate: lr, Momentum: momentum}, ""
	})
}
