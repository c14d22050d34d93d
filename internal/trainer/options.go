package trainer

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"cesure-forge/internal/control"
	"cesure-forge/internal/dataset"
	"cesure-forge/internal/errorcalc"
)

// Algorithm names a training loop.
type Algorithm string

const (
	AlgorithmBPTT         Algorithm = "bptt"
	AlgorithmBPTTOnline   Algorithm = "bptt-online"
	AlgorithmSearch       Algorithm = "search"
	AlgorithmSearchOnline Algorithm = "search-online"
)

// Reasons a loop ended.
const (
	StopCompleted        = "completed"
	StopCommand          = "stop command"
	StopInvalidMagnitude = "invalid magnitude"
	StopCanceled         = "canceled"
)

const defaultSeed = 42

var errNoSets = errors.New("trainer: no training sets")

// Options holds the knobs shared by every loop.
type Options struct {
	Iterations int
	Loss       errorcalc.Kind
	// Rand drives weight noise. Nil means a source seeded with 42.
	Rand *rand.Rand
	// Commands is polled once per iteration. Nil disables operator control.
	Commands control.Poller
	Logger   logrus.FieldLogger
	// LogEvery spaces progress entries; values below 1 log every iteration.
	LogEvery int
	// OnEpoch, when set, is called after every completed iteration.
	OnEpoch func(Epoch)
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

func (o *Options) rng() *rand.Rand {
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(defaultSeed))
	}
	return o.Rand
}

// Epoch describes one completed iteration.
type Epoch struct {
	Algorithm      Algorithm
	Index          int
	Error          float64
	LearningRate   float64
	Momentum       float64
	Magnitude      float64
	MagnitudeStart float64
	MagnitudeEnd   float64
	Elapsed        time.Duration
}

func (e Epoch) fields() logrus.Fields {
	f := logrus.Fields{"epoch": e.Index, "error": e.Error}
	switch e.Algorithm {
	case AlgorithmBPTT, AlgorithmBPTTOnline:
		f["learning_rate"] = e.LearningRate
		f["momentum"] = e.Momentum
	default:
		f["magnitude"] = e.Magnitude
		f["magnitude_start"] = e.MagnitudeStart
		f["magnitude_end"] = e.MagnitudeEnd
	}
	return f
}

// Result summarizes a finished loop.
type Result struct {
	// RunID is set by Run and names the run in the journal.
	RunID      string
	Epochs     int
	FinalError float64
	// History holds the error of every completed iteration.
	History    []float64
	StopReason string
}

// iterate runs step until the iteration target in s is reached, applying
// operator commands between iterations. step returns a non-empty stop
// reason to end the loop before completing its iteration.
func iterate(ctx context.Context, o *Options, s *control.Settings, algorithm Algorithm, step func(iteration int) (Epoch, string)) (Result, error) {
	log := o.logger().WithField("algorithm", string(algorithm))
	every := max(o.LogEvery, 1)
	var res Result
	for it := 0; ; it++ {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCanceled
			return res, err
		}
		s.Drain(o.Commands, log)
		if s.Stopped {
			res.StopReason = StopCommand
			return res, nil
		}
		if it >= s.Iterations {
			break
		}

		start := time.Now()
		ep, stop := step(it)
		if stop != "" {
			log.WithField("iteration", it).Warnf("stopping: %s", stop)
			res.StopReason = stop
			return res, nil
		}
		ep.Algorithm = algorithm
		ep.Index = it
		ep.Elapsed = time.Since(start)

		res.Epochs++
		res.FinalError = ep.Error
		res.History = append(res.History, ep.Error)
		if s.Verbose && it%every == 0 {
			log.WithFields(ep.fields()).Info("epoch")
		}
		if o.OnEpoch != nil {
			o.OnEpoch(ep)
		}
	}
	res.StopReason = StopCompleted
	return res, nil
}

func checkSets(sets []*dataset.TrainingSet) error {
	if len(sets) == 0 {
		return errNoSets
	}
	return nil
}
