package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"cesure-forge/internal/cesure"
	"cesure-forge/internal/control"
	"cesure-forge/internal/dataset"
)

// SearchOptions configures the stochastic search loops.
type SearchOptions struct {
	Options
	// The noise magnitude moves linearly from MagnitudeStart to
	// MagnitudeEnd over the iteration target.
	MagnitudeStart float64
	MagnitudeEnd   float64
	// Workers is the number of candidates tried per iteration.
	Workers int
}

func (o *SearchOptions) settings() (control.Settings, error) {
	if o.MagnitudeStart < 0 || o.MagnitudeEnd < 0 {
		return control.Settings{}, fmt.Errorf("trainer: magnitudes must be >= 0 (got %v, %v)", o.MagnitudeStart, o.MagnitudeEnd)
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return control.Settings{
		MagnitudeStart: o.MagnitudeStart,
		MagnitudeEnd:   o.MagnitudeEnd,
		Iterations:     o.Iterations,
		Verbose:        true,
	}, nil
}

// magnitude interpolates the noise for iteration it. The second result is
// false when the value cannot drive a search.
func magnitude(s *control.Settings, it int) (float64, bool) {
	x := float64(it) / float64(s.Iterations)
	mag := x*s.MagnitudeEnd + (1-x)*s.MagnitudeStart
	if mag <= 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return mag, false
	}
	return mag, true
}

// perturb clones best once per worker, each with its own generator seeded
// from rng, and evaluates the clones concurrently. Results are indexed by
// worker.
func perturb(best *cesure.Cesure, mag float64, workers int, rng *rand.Rand, eval func(*cesure.Cesure) float64) ([]*cesure.Cesure, []float64) {
	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	nets := make([]*cesure.Cesure, workers)
	errs := make([]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			nets[w] = best.CloneRandomized(mag, rand.New(rand.NewSource(seeds[w])))
			errs[w] = eval(nets[w])
		}(w)
	}
	wg.Wait()
	return nets, errs
}

// lowest returns the index of the smallest error strictly below bound, or -1.
func lowest(errs []float64, bound float64) int {
	idx := -1
	for i, e := range errs {
		if e < bound {
			idx, bound = i, e
		}
	}
	return idx
}

// Search runs a parallel random search. Every iteration tries Workers
// perturbed copies of the best network on all sets and keeps the one with
// the lowest error sum if it beats the best. The best network is copied
// into c when the loop ends.
func Search(ctx context.Context, c *cesure.Cesure, sets []*dataset.TrainingSet, opts SearchOptions) (Result, error) {
	if err := checkSets(sets); err != nil {
		return Result{}, err
	}
	s, err := opts.settings()
	if err != nil {
		return Result{}, err
	}
	rng := opts.rng()

	best := c.Clone()
	bestErr := best.CalculateErrorSumMulti(sets, opts.Loss)
	eval := func(n *cesure.Cesure) float64 { return n.CalculateErrorSumMulti(sets, opts.Loss) }

	res, err := iterate(ctx, &opts.Options, &s, AlgorithmSearch, func(it int) (Epoch, string) {
		mag, ok := magnitude(&s, it)
		if !ok {
			return Epoch{}, StopInvalidMagnitude
		}
		nets, errs := perturb(best, mag, opts.Workers, rng, eval)
		if i := lowest(errs, bestErr); i >= 0 {
			best, bestErr = nets[i], errs[i]
		}
		return Epoch{
			Error:          bestErr,
			Magnitude:      mag,
			MagnitudeStart: s.MagnitudeStart,
			MagnitudeEnd:   s.MagnitudeEnd,
		}, ""
	})
	c.CopyFrom(best)
	res.FinalError = bestErr
	return res, err
}

// SearchOnline runs the random search one tick at a time. Sets and their
// ticks are visited round robin; every iteration advances the best network
// and Workers perturbed copies of it by one chord and adopts the copy whose
// chord error is strictly lowest.
func SearchOnline(ctx context.Context, c *cesure.Cesure, sets []*dataset.TrainingSet, opts SearchOptions) (Result, error) {
	if err := checkSets(sets); err != nil {
		return Result{}, err
	}
	s, err := opts.settings()
	if err != nil {
		return Result{}, err
	}
	rng := opts.rng()
	log := opts.logger().WithField("algorithm", string(AlgorithmSearchOnline))

	best := c.Clone()
	setIdx, tick := 0, 0
	passErr := 0.0

	res, err := iterate(ctx, &opts.Options, &s, AlgorithmSearchOnline, func(it int) (Epoch, string) {
		mag, ok := magnitude(&s, it)
		if !ok {
			return Epoch{}, StopInvalidMagnitude
		}
		set := sets[setIdx]
		if tick == 0 {
			best.NewSequence(set.Infos)
			for _, chord := range set.Inject {
				best.InjectNext(chord)
			}
		}
		ideal := set.Compute[tick]
		eval := func(n *cesure.Cesure) float64 { return opts.Loss.Calculate(n.ComputeNext(), ideal).AbsAvg() }

		nets, errs := perturb(best, mag, opts.Workers, rng, eval)
		bestErr := eval(best)
		if i := lowest(errs, bestErr); i >= 0 {
			best, bestErr = nets[i], errs[i]
		}

		passErr += bestErr
		tick++
		if tick >= set.Ticks() {
			log.WithFields(logrus.Fields{"set": set.Name, "error": passErr}).Debug("set pass finished")
			passErr = 0
			tick = 0
			setIdx = (setIdx + 1) % len(sets)
		}
		return Epoch{
			Error:          bestErr,
			Magnitude:      mag,
			MagnitudeStart: s.MagnitudeStart,
			MagnitudeEnd:   s.MagnitudeEnd,
		}, ""
	})
	c.CopyFrom(best)
	return res, err
}
