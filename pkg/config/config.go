// Package config holds runtime settings: defaults, YAML loading and
// validation. Command-line flags are applied on top by cmd/midiroll.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/james-see/midiroll/pkg/heatmap"
	"github.com/james-see/midiroll/pkg/labels"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// Config holds all runtime settings
type Config struct {
	// Grid
	TimeStep float64 `yaml:"time_step"` // Default: 0.001 s.
	MaxTime  float64 `yaml:"max_time"`  // Default: 30 s.

	// Synthesis
	SoundFont  string `yaml:"soundfont"`   // Path to an .sf2 bank; rendering is disabled when empty.
	SampleRate int    `yaml:"sample_rate"` // Default: 44100 Hz.

	// Heat map
	Heatmap HeatmapConfig `yaml:"heatmap"`

	// Labels
	LabelIDColumn   string `yaml:"label_id_column"`   // Default: "ID".
	LabelCodeColumn string `yaml:"label_code_column"` // Default: "4Q".

	// Runtime
	LogLevel string `yaml:"log_level"` // debug, info, warn, error. Default: info.
	Port     int    `yaml:"port"`      // API port. Default: 8080.
	Workers  int    `yaml:"workers"`   // Batch concurrency. Default: 4.
}

// HeatmapConfig controls PNG rendering
type HeatmapConfig struct {
	MaxWidth   int `yaml:"max_width"`   // Default: 2048 columns.
	PitchScale int `yaml:"pitch_scale"` // Default: 4 px per pitch.
}

// Default returns a Config on the 1 ms / 30 s grid
func Default() *Config {
	return &Config{
		TimeStep:        pianoroll.DefaultTimeStep,
		MaxTime:         pianoroll.DefaultMaxTime,
		SampleRate:      44100,
		Heatmap:         HeatmapConfig{MaxWidth: 2048, PitchScale: 4},
		LabelIDColumn:   "ID",
		LabelCodeColumn: "4Q",
		LogLevel:        "info",
		Port:            8080,
		Workers:         4,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Grid returns the quantization grid described by the config
func (c *Config) Grid() pianoroll.Grid {
	return pianoroll.Grid{TimeStep: c.TimeStep, MaxTime: c.MaxTime}
}

// HeatmapOptions returns PNG rendering options over the default palette
func (c *Config) HeatmapOptions() heatmap.Options {
	opts := heatmap.DefaultOptions()
	opts.MaxWidth = c.Heatmap.MaxWidth
	opts.PitchScale = c.Heatmap.PitchScale
	return opts
}

// LabelOptions returns the CSV columns to read labels from
func (c *Config) LabelOptions() labels.Options {
	return labels.Options{IDColumn: c.LabelIDColumn, CodeColumn: c.LabelCodeColumn}
}

// Validate checks settings for consistency
func (c *Config) Validate() error {
	var errs []error
	if err := c.Grid().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Heatmap.MaxWidth <= 0 || c.Heatmap.PitchScale <= 0 {
		errs = append(errs, errors.New("heatmap dimensions must be positive"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
