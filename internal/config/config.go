package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/errorcalc"
)

// Modes.
const (
	ModeTrain    = "train"
	ModeGenerate = "generate"
)

// Training algorithms.
const (
	AlgorithmBPTT         = "bptt"
	AlgorithmBPTTOnline   = "bptt-online"
	AlgorithmSearch       = "search"
	AlgorithmSearchOnline = "search-online"
)

// Architecture sizes a new network. It is ignored when NetworkPath names an
// existing network.
type Architecture struct {
	ContextDim   int    `yaml:"context_dim"`
	OutputLayers int    `yaml:"output_layers"`
	MemoryLayers int    `yaml:"memory_layers"`
	Activation   string `yaml:"activation"`
}

// Generate configures the generate mode.
type Generate struct {
	SeedPath   string `yaml:"seed_path"`
	Ticks      int    `yaml:"ticks"`
	OutputPath string `yaml:"output_path"`
}

// Config captures the runtime knobs for a run.
type Config struct {
	Mode             string       `yaml:"mode"`
	DataRoots        []string     `yaml:"data_roots"`
	InjectPrefix     int          `yaml:"inject_prefix"`
	NetworkPath      string       `yaml:"network_path"`
	SavePath         string       `yaml:"save_path"`
	Architecture     Architecture `yaml:"architecture"`
	Algorithm        string       `yaml:"algorithm"`
	ErrorCalculation string       `yaml:"error_calculation"`
	Iterations       int          `yaml:"iterations"`
	LearningRate     float64      `yaml:"learning_rate"`
	Momentum         float64      `yaml:"momentum"`
	Depth            int          `yaml:"depth"`
	MagnitudeStart   float64      `yaml:"magnitude_start"`
	MagnitudeEnd     float64      `yaml:"magnitude_end"`
	Workers          int          `yaml:"workers"`
	Seed             int64        `yaml:"seed"`
	LogEvery         int          `yaml:"log_every"`
	JournalPath      string       `yaml:"journal_path"`
	LoaderWorkers    int          `yaml:"loader_workers"`
	Generate         Generate     `yaml:"generate"`
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		Mode:         ModeTrain,
		InjectPrefix: 15,
		Architecture: Architecture{
			ContextDim:   32,
			OutputLayers: 10,
			MemoryLayers: 10,
			Activation:   activation.Sigmoid.String(),
		},
		Algorithm:        AlgorithmBPTTOnline,
		ErrorCalculation: errorcalc.Smart.String(),
		LearningRate:     0.1,
		Momentum:         0.9,
		Depth:            5,
		Workers:          4,
		LogEvery:         1,
		LoaderWorkers:    4,
		Generate:         Generate{Ticks: 1000},
	}
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Mode           string
	DataRoots      []string
	NetworkPath    string
	SavePath       string
	Algorithm      string
	Iterations     int
	LearningRate   float64
	Momentum       float64
	MagnitudeStart float64
	MagnitudeEnd   float64
	Workers        int
	Seed           int64
	LogEvery       int
	JournalPath    string
	SeedPath       string
	OutputPath     string
	Ticks          int
}

// Load reads a Config from YAML on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if len(o.DataRoots) > 0 {
		c.DataRoots = o.DataRoots
	}
	if o.NetworkPath != "" {
		c.NetworkPath = o.NetworkPath
	}
	if o.SavePath != "" {
		c.SavePath = o.SavePath
	}
	if o.Algorithm != "" {
		c.Algorithm = o.Algorithm
	}
	if o.Iterations > 0 {
		c.Iterations = o.Iterations
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Momentum > 0 {
		c.Momentum = o.Momentum
	}
	if o.MagnitudeStart > 0 {
		c.MagnitudeStart = o.MagnitudeStart
	}
	if o.MagnitudeEnd > 0 {
		c.MagnitudeEnd = o.MagnitudeEnd
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.JournalPath != "" {
		c.JournalPath = o.JournalPath
	}
	if o.SeedPath != "" {
		c.Generate.SeedPath = o.SeedPath
	}
	if o.OutputPath != "" {
		c.Generate.OutputPath = o.OutputPath
	}
	if o.Ticks > 0 {
		c.Generate.Ticks = o.Ticks
	}
}

// Validate verifies the config is runnable. It never modifies c.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := activation.Parse(c.Architecture.Activation); err != nil {
		return fmt.Errorf("architecture.activation: %w", err)
	}
	if _, err := errorcalc.Parse(c.ErrorCalculation); err != nil {
		return fmt.Errorf("error_calculation: %w", err)
	}
	if c.InjectPrefix < 0 {
		return fmt.Errorf("inject_prefix must be >= 0 (got %d)", c.InjectPrefix)
	}
	if c.LogEvery <= 0 {
		return fmt.Errorf("log_every must be > 0 (got %d)", c.LogEvery)
	}
	if c.LoaderWorkers <= 0 {
		return fmt.Errorf("loader_workers must be > 0 (got %d)", c.LoaderWorkers)
	}

	switch c.Mode {
	case ModeTrain:
		return c.validateTrain()
	case ModeGenerate:
		if c.NetworkPath == "" {
			return errors.New("generate mode needs network_path")
		}
		if c.Generate.SeedPath == "" {
			return errors.New("generate mode needs generate.seed_path")
		}
		if c.Generate.OutputPath == "" {
			return errors.New("generate mode needs generate.output_path")
		}
		if c.Generate.Ticks <= 0 {
			return fmt.Errorf("generate.ticks must be > 0 (got %d)", c.Generate.Ticks)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
}

func (c *Config) validateTrain() error {
	if len(c.DataRoots) == 0 {
		return errors.New("at least one data root must be set")
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be > 0 (got %d)", c.Iterations)
	}
	if c.NetworkPath == "" {
		a := c.Architecture
		if a.ContextDim <= 0 || a.OutputLayers <= 0 || a.MemoryLayers <= 0 {
			return fmt.Errorf("architecture needs positive context_dim and layer counts (got %d/%d/%d)",
				a.ContextDim, a.OutputLayers, a.MemoryLayers)
		}
	}
	switch c.Algorithm {
	case AlgorithmBPTT, AlgorithmBPTTOnline:
		if c.LearningRate < 0 {
			return fmt.Errorf("learning_rate must be >= 0 (got %v)", c.LearningRate)
		}
		if c.Momentum < 0 {
			return fmt.Errorf("momentum must be >= 0 (got %v)", c.Momentum)
		}
	case AlgorithmSearch, AlgorithmSearchOnline:
		if c.MagnitudeStart < 0 || c.MagnitudeEnd < 0 {
			return fmt.Errorf("magnitudes must be >= 0 (got %v, %v)", c.MagnitudeStart, c.MagnitudeEnd)
		}
		if c.MagnitudeStart == 0 && c.MagnitudeEnd == 0 {
			return errors.New("magnitude_start or magnitude_end must be > 0")
		}
		if c.Workers <= 0 {
			return fmt.Errorf("workers must be > 0 (got %d)", c.Workers)
		}
	default:
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	return nil
}
