package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cesure-forge/internal/cesure"
	"cesure-forge/internal/control"
	"cesure-forge/internal/dataset"
	"cesure-forge/internal/errorcalc"
	"cesure-forge/internal/journal"
	"cesure-forge/internal/metrics"
	"cesure-forge/internal/music"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Roots         []string
	InjectPrefix  int
	LoaderWorkers int

	// NetworkPath, when set, names a saved network to keep training.
	// Otherwise a network is built from Architecture.
	NetworkPath  string
	Architecture cesure.Architecture
	// SavePath, when set, receives the trained network. Otherwise the
	// operator is asked for a file name on Console.
	SavePath string

	Algorithm      Algorithm
	Loss           errorcalc.Kind
	Iterations     int
	LearningRate   float64
	Momentum       float64
	Depth          int
	MagnitudeStart float64
	MagnitudeEnd   float64
	Workers        int
	Seed           int64
	LogEvery       int

	// JournalPath, when set, names a SQLite file receiving one row per epoch.
	JournalPath string

	// Console carries operator commands and the save prompt answer.
	Console *control.Source
	// Prompt receives the save question. Nil disables the prompt.
	Prompt io.Writer
	Logger logrus.FieldLogger
}

// Run loads the training sets, trains a network and saves it.
func Run(ctx context.Context, cfg RunConfig) (Result, error) {
	if cfg.Iterations <= 0 {
		return Result{}, errors.New("trainer: iterations must be > 0")
	}
	if len(cfg.Roots) == 0 {
		return Result{}, errors.New("trainer: no data roots")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaultSeed
	}
	base := cfg.Logger
	if base == nil {
		base = logrus.StandardLogger()
	}
	runID := uuid.NewString()
	log := base.WithField("run_id", runID)
	rng := rand.New(rand.NewSource(cfg.Seed))

	byRoot, err := dataset.DiscoverByRoot(cfg.Roots)
	if err != nil {
		return Result{}, err
	}
	for root, files := range byRoot {
		log.WithFields(logrus.Fields{"root": root, "files": len(files)}).Info("discovered")
	}
	sets, err := dataset.Load(ctx, dataset.BuildOrder(byRoot, rng), dataset.LoadOptions{
		Prefix:     cfg.InjectPrefix,
		NumWorkers: cfg.LoaderWorkers,
		SkipFailed: true,
		Logger:     log,
	})
	if err != nil {
		return Result{}, err
	}

	net, err := network(cfg, rng)
	if err != nil {
		return Result{}, err
	}
	if err := checkDims(net, sets); err != nil {
		return Result{}, err
	}
	log.WithFields(logrus.Fields{"sets": len(sets), "weights": net.NbWeights()}).Info("training")

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		if jr, err = journal.Open(cfg.JournalPath); err != nil {
			return Result{}, err
		}
		defer jr.Close()
	}

	var window metrics.Window
	opts := Options{
		Iterations: cfg.Iterations,
		Loss:       cfg.Loss,
		Rand:       rng,
		Logger:     log,
		LogEvery:   cfg.LogEvery,
		OnEpoch: func(ep Epoch) {
			window.Record(ep.Elapsed, ep.Error)
			if jr != nil {
				err := jr.Record(ctx, journal.Entry{
					RunID:        runID,
					Algorithm:    string(ep.Algorithm),
					Epoch:        ep.Index,
					Error:        ep.Error,
					LearningRate: ep.LearningRate,
					Momentum:     ep.Momentum,
					Magnitude:    ep.Magnitude,
				})
				if err != nil {
					log.WithError(err).Warn("journal record failed")
				}
			}
			if (ep.Index+1)%cfg.LogEvery == 0 {
				logSnapshot(log, window.Snapshot())
			}
		},
	}
	if cfg.Console != nil {
		opts.Commands = cfg.Console
	}

	res, err := train(ctx, net, sets, cfg, opts)
	res.RunID = runID
	log.WithFields(logrus.Fields{
		"epochs":      res.Epochs,
		"final_error": res.FinalError,
		"stop_reason": res.StopReason,
	}).Info("training finished")
	if err != nil && !errors.Is(err, context.Canceled) {
		return res, err
	}

	if saveErr := save(ctx, net, cfg, log); saveErr != nil {
		return res, saveErr
	}
	return res, err
}

func network(cfg RunConfig, rng *rand.Rand) (*cesure.Cesure, error) {
	if cfg.NetworkPath != "" {
		return cesure.Load(cfg.NetworkPath)
	}
	return cesure.New(cfg.Architecture, rng)
}

func checkDims(net *cesure.Cesure, sets []*dataset.TrainingSet) error {
	for _, set := range sets {
		if set.Infos.Cols() != net.InfosDim() || set.ChordDim() != net.OutputDim() {
			return fmt.Errorf("trainer: set %s is %d/%d wide, network expects %d/%d",
				set.Name, set.Infos.Cols(), set.ChordDim(), net.InfosDim(), net.OutputDim())
		}
	}
	return nil
}

func train(ctx context.Context, net *cesure.Cesure, sets []*dataset.TrainingSet, cfg RunConfig, opts Options) (Result, error) {
	switch cfg.Algorithm {
	case AlgorithmBPTT, AlgorithmBPTTOnline:
		bo := BPTTOptions{Options: opts, LearningRate: cfg.LearningRate, Momentum: cfg.Momentum, Depth: cfg.Depth}
		if cfg.Algorithm == AlgorithmBPTT {
			return TrainBPTT(ctx, net, sets, bo)
		}
		return TrainBPTTOnline(ctx, net, sets, bo)
	case AlgorithmSearch, AlgorithmSearchOnline:
		so := SearchOptions{Options: opts, MagnitudeStart: cfg.MagnitudeStart, MagnitudeEnd: cfg.MagnitudeEnd, Workers: cfg.Workers}
		if cfg.Algorithm == AlgorithmSearch {
			return Search(ctx, net, sets, so)
		}
		return SearchOnline(ctx, net, sets, so)
	default:
		return Result{}, fmt.Errorf("trainer: unknown algorithm %q", cfg.Algorithm)
	}
}

// save writes net to SavePath, or asks the operator for a path. An empty
// answer skips saving. The prompt is skipped once ctx is done.
func save(ctx context.Context, net *cesure.Cesure, cfg RunConfig, log logrus.FieldLogger) error {
	path := cfg.SavePath
	if path == "" && cfg.Console != nil && cfg.Prompt != nil && ctx.Err() == nil {
		cfg.Console.Discard()
		fmt.Fprint(cfg.Prompt, "Type the file name to save the network in (empty to skip): ")
		line, err := cfg.Console.ReadLine(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		path = line
	}
	if path == "" {
		log.Info("network not saved")
		return nil
	}
	if err := net.Save(path); err != nil {
		return err
	}
	log.WithField("path", path).Info("network saved")
	return nil
}

func logSnapshot(log logrus.FieldLogger, snap metrics.Snapshot) {
	log.WithFields(logrus.Fields{
		"epochs":         snap.Epochs,
		"epochs_per_sec": fmt.Sprintf("%.2f", snap.EpochsPerSec),
		"epoch_ms":       fmt.Sprintf("%.2f", snap.AvgEpochMS),
		"last_error":     snap.LastError,
		"mean_error":     snap.MeanError,
		"stddev_error":   snap.StdDevError,
	}).Info("throughput")
}

// GenerateConfig captures the knobs of a generation run.
type GenerateConfig struct {
	NetworkPath  string
	SeedPath     string
	InjectPrefix int
	Ticks        int
	OutputPath   string
	Logger       logrus.FieldLogger
}

// Generate replays the start of a seed piece through a saved network,
// appends Ticks generated chords and writes the result as MIDI.
func Generate(ctx context.Context, cfg GenerateConfig) (*music.Sequence, error) {
	if cfg.Ticks <= 0 {
		return nil, errors.New("trainer: ticks must be > 0")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	net, err := cesure.Load(cfg.NetworkPath)
	if err != nil {
		return nil, err
	}
	seed, err := music.ReadFile(cfg.SeedPath, log)
	if err != nil {
		return nil, err
	}
	if net.InfosDim() != music.DescriptorDim || net.OutputDim() != music.ChordDim {
		return nil, fmt.Errorf("trainer: network is %d/%d wide, pieces are %d/%d",
			net.InfosDim(), net.OutputDim(), music.DescriptorDim, music.ChordDim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inject := seed.Chords[:min(max(cfg.InjectPrefix, 0), len(seed.Chords))]
	out := music.Compose(net, seed.Infos, inject, cfg.Ticks)
	if err := out.WriteFile(cfg.OutputPath); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"seed":     cfg.SeedPath,
		"injected": len(inject),
		"ticks":    cfg.Ticks,
		"output":   cfg.OutputPath,
	}).Info("generated")
	return out, nil
}
