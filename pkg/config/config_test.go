package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/midiroll/pkg/pianoroll"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Grid() != pianoroll.DefaultGrid() {
		t.Errorf("Grid() = %v, want %v", cfg.Grid(), pianoroll.DefaultGrid())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero time step", func(c *Config) { c.TimeStep = 0 }},
		{"negative horizon", func(c *Config) { c.MaxTime = -1 }},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"flat heatmap", func(c *Config) { c.Heatmap.PitchScale = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	cfg := Default()
	cfg.TimeStep = -1
	if err := cfg.Validate(); !errors.Is(err, pianoroll.ErrInvalidGridParameter) {
		t.Errorf("Validate() = %v, want ErrInvalidGridParameter", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midiroll.yaml")
	data := []byte("time_step: 0.01\nmax_time: 10\nsoundfont: /tmp/FluidR3_GM.sf2\nheatmap:\n  pitch_scale: 2\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TimeStep != 0.01 || cfg.MaxTime != 10 {
		t.Errorf("grid = %v/%v, want 0.01/10", cfg.TimeStep, cfg.MaxTime)
	}
	if cfg.SoundFont != "/tmp/FluidR3_GM.sf2" {
		t.Errorf("SoundFont = %q", cfg.SoundFont)
	}
	if cfg.Heatmap.PitchScale != 2 || cfg.Heatmap.MaxWidth != 2048 {
		t.Errorf("Heatmap = %+v, want pitch_scale 2 and default width", cfg.Heatmap)
	}
	if cfg.Port != 8080 || cfg.LogLevel != "info" {
		t.Errorf("defaults not kept: port=%d level=%q", cfg.Port, cfg.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("time_step: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, pianoroll.ErrInvalidGridParameter) {
		t.Errorf("Load() = %v, want ErrInvalidGridParameter", err)
	}
}

func TestDerivedOptions(t *testing.T) {
	cfg := Default()
	cfg.Heatmap.MaxWidth = 512
	cfg.LabelCodeColumn = "quadrant"

	hm := cfg.HeatmapOptions()
	if hm.MaxWidth != 512 || hm.PitchScale != 4 || hm.Background == nil {
		t.Errorf("HeatmapOptions() = %+v", hm)
	}
	if lo := cfg.LabelOptions(); lo.IDColumn != "ID" || lo.CodeColumn != "quadrant" {
		t.Errorf("LabelOptions() = %+v", lo)
	}
}
