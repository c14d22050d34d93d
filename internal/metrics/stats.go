package metrics

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window accumulates epoch timings and errors between snapshots.
type Window struct {
	epochs    int
	elapsed   time.Duration
	errors    []float64
	lastError float64
}

// Record adds one epoch to the window.
func (w *Window) Record(elapsed time.Duration, err float64) {
	w.epochs++
	w.elapsed += elapsed
	w.errors = append(w.errors, err)
	w.lastError = err
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Epochs: w.epochs, LastError: w.lastError}
	if w.elapsed > 0 {
		snap.EpochsPerSec = float64(w.epochs) / w.elapsed.Seconds()
	}
	if w.epochs > 0 {
		snap.AvgEpochMS = (w.elapsed.Seconds() * 1000) / float64(w.epochs)
	}
	switch len(w.errors) {
	case 0:
	case 1:
		snap.MeanError = w.errors[0]
	default:
		snap.MeanError, snap.StdDevError = stat.MeanStdDev(w.errors, nil)
	}

	w.epochs = 0
	w.elapsed = 0
	w.errors = w.errors[:0]
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Epochs       int
	EpochsPerSec float64
	AvgEpochMS   float64
	LastError    float64
	MeanError    float64
	StdDevError  float64
}
