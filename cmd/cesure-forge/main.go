package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/cesure"
	"cesure-forge/internal/config"
	"cesure-forge/internal/control"
	"cesure-forge/internal/errorcalc"
	"cesure-forge/internal/music"
	"cesure-forge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/cesure.yaml", "Path to YAML config")
	mode := flag.String("mode", "", "Override mode (train or generate)")
	dataRoots := flag.String("data-roots", "", "Comma separated MIDI directories")
	networkPath := flag.String("network", "", "Saved network to load")
	savePath := flag.String("save", "", "Where to save the trained network")
	algorithm := flag.String("algorithm", "", "Training algorithm")
	iterations := flag.Int("iterations", 0, "Number of training iterations")
	learningRate := flag.Float64("lr", 0, "Learning rate")
	momentum := flag.Float64("momentum", 0, "Momentum")
	mag0 := flag.Float64("mag0", 0, "Starting search magnitude")
	mag1 := flag.Float64("mag1", 0, "Final search magnitude")
	workers := flag.Int("workers", 0, "Number of search workers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log throughput every N iterations")
	journalPath := flag.String("journal", "", "SQLite journal of epochs")
	seedPath := flag.String("seed-midi", "", "MIDI piece seeding generation")
	outputPath := flag.String("out", "", "Generated MIDI file")
	ticks := flag.Int("ticks", 0, "Number of chords to generate")
	logLevel := flag.String("log-level", "info", "Log level")
	logJSON := flag.Bool("log-json", false, "Log as JSON")

	flag.Parse()

	log := logrus.New()
	if *logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	log.SetLevel(level)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var roots []string
	if *dataRoots != "" {
		roots = strings.Split(*dataRoots, ",")
	}
	cfg.ApplyOverrides(config.Overrides{
		Mode:           *mode,
		DataRoots:      roots,
		NetworkPath:    *networkPath,
		SavePath:       *savePath,
		Algorithm:      *algorithm,
		Iterations:     *iterations,
		LearningRate:   *learningRate,
		Momentum:       *momentum,
		MagnitudeStart: *mag0,
		MagnitudeEnd:   *mag1,
		Workers:        *workers,
		Seed:           *seed,
		LogEvery:       *logEvery,
		JournalPath:    *journalPath,
		SeedPath:       *seedPath,
		OutputPath:     *outputPath,
		Ticks:          *ticks,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Mode == config.ModeGenerate {
		_, err := trainer.Generate(ctx, trainer.GenerateConfig{
			NetworkPath:  cfg.NetworkPath,
			SeedPath:     cfg.Generate.SeedPath,
			InjectPrefix: cfg.InjectPrefix,
			Ticks:        cfg.Generate.Ticks,
			OutputPath:   cfg.Generate.OutputPath,
			Logger:       log,
		})
		if err != nil {
			log.Fatalf("generation failed: %v", err)
		}
		return
	}

	// Validate has already accepted both tags.
	act, _ := activation.Parse(cfg.Architecture.Activation)
	loss, _ := errorcalc.Parse(cfg.ErrorCalculation)
	runCfg := trainer.RunConfig{
		Roots:         cfg.DataRoots,
		InjectPrefix:  cfg.InjectPrefix,
		LoaderWorkers: cfg.LoaderWorkers,
		NetworkPath:   cfg.NetworkPath,
		Architecture: cesure.Architecture{
			InfosDim:     music.DescriptorDim,
			ContextDim:   cfg.Architecture.ContextDim,
			OutputDim:    music.ChordDim,
			OutputLayers: cfg.Architecture.OutputLayers,
			MemoryLayers: cfg.Architecture.MemoryLayers,
			Activation:   act,
		},
		SavePath:       cfg.SavePath,
		Algorithm:      trainer.Algorithm(cfg.Algorithm),
		Loss:           loss,
		Iterations:     cfg.Iterations,
		LearningRate:   cfg.LearningRate,
		Momentum:       cfg.Momentum,
		Depth:          cfg.Depth,
		MagnitudeStart: cfg.MagnitudeStart,
		MagnitudeEnd:   cfg.MagnitudeEnd,
		Workers:        cfg.Workers,
		Seed:           cfg.Seed,
		LogEvery:       cfg.LogEvery,
		JournalPath:    cfg.JournalPath,
		Console:        control.NewSource(os.Stdin),
		Prompt:         os.Stdout,
		Logger:         log,
	}

	if _, err := trainer.Run(ctx, runCfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("training interrupted")
			return
		}
		log.Fatalf("training failed: %v", err)
	}
}
