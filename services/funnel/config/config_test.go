// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
)

func TestDefaultFunnelConfig(t *testing.T) {
	config := DefaultFunnelConfig()

	if config.Gate.GateFraction != lag.DefaultGateFraction {
		t.Errorf("Gate.GateFraction = %v, want %v", config.Gate.GateFraction, lag.DefaultGateFraction)
	}
	if config.Gate.MinSample != lag.DefaultMinGateSample {
		t.Errorf("Gate.MinSample = %v, want %v", config.Gate.MinSample, lag.DefaultMinGateSample)
	}
	if config.Horizon.MaxSigma != lag.DefaultMaxSigma {
		t.Errorf("Horizon.MaxSigma = %v, want %v", config.Horizon.MaxSigma, lag.DefaultMaxSigma)
	}
	if config.Blend.Strategy != "completeness_weighted" {
		t.Errorf("Blend.Strategy = %q, want completeness_weighted", config.Blend.Strategy)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestFunnelConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *FunnelConfig)
		wantError bool
	}{
		{
			name:      "defaults are valid",
			modify:    func(c *FunnelConfig) {},
			wantError: false,
		},
		{
			name: "gate_fraction zero",
			modify: func(c *FunnelConfig) {
				c.Gate.GateFraction = 0
			},
			wantError: true,
		},
		{
			name: "gate_fraction one",
			modify: func(c *FunnelConfig) {
				c.Gate.GateFraction = 1
			},
			wantError: true,
		},
		{
			name: "sustain_bins zero",
			modify: func(c *FunnelConfig) {
				c.Gate.SustainBins = 0
			},
			wantError: true,
		},
		{
			name: "max_sigma negative",
			modify: func(c *FunnelConfig) {
				c.Horizon.MaxSigma = -1
			},
			wantError: true,
		},
		{
			name: "solver tolerance zero",
			modify: func(c *FunnelConfig) {
				c.Solver.Tolerance = 0
			},
			wantError: true,
		},
		{
			name: "unknown blend strategy",
			modify: func(c *FunnelConfig) {
				c.Blend.Strategy = "optimistic"
			},
			wantError: true,
		},
		{
			name: "cache capacity zero",
			modify: func(c *FunnelConfig) {
				c.Cache.Capacity = 0
			},
			wantError: true,
		},
		{
			name: "max_parallel zero",
			modify: func(c *FunnelConfig) {
				c.Parallel.MaxParallel = 0
			},
			wantError: true,
		},
		{
			name: "unknown log level",
			modify: func(c *FunnelConfig) {
				c.Logging.Level = "verbose"
			},
			wantError: true,
		},
		{
			name: "log level case insensitive",
			modify: func(c *FunnelConfig) {
				c.Logging.Level = "DEBUG"
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultFunnelConfig()
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError = %v", err, tt.wantError)
			}
		})
	}
}

func TestLoadFunnelConfig_FromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "funnel.yaml")

	yamlContent := `
gate:
  gate_fraction: 0.05
  sustain_bins: 3

horizon:
  max_sigma: 6.0

cache:
  capacity: 32

logging:
  level: debug
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadFunnelConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFunnelConfig() error = %v", err)
	}

	if config.Gate.GateFraction != 0.05 {
		t.Errorf("Gate.GateFraction = %v, want 0.05", config.Gate.GateFraction)
	}
	if config.Gate.SustainBins != 3 {
		t.Errorf("Gate.SustainBins = %d, want 3", config.Gate.SustainBins)
	}
	if config.Horizon.MaxSigma != 6.0 {
		t.Errorf("Horizon.MaxSigma = %v, want 6.0", config.Horizon.MaxSigma)
	}
	if config.Cache.Capacity != 32 {
		t.Errorf("Cache.Capacity = %d, want 32", config.Cache.Capacity)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", config.Logging.Level)
	}

	// Untouched sections keep their defaults.
	if config.Gate.MinSample != lag.DefaultMinGateSample {
		t.Errorf("Gate.MinSample = %v, want default %v", config.Gate.MinSample, lag.DefaultMinGateSample)
	}
	if config.Solver.MaxIterations != lag.DefaultSolverMaxIterations {
		t.Errorf("Solver.MaxIterations = %d, want default %d",
			config.Solver.MaxIterations, lag.DefaultSolverMaxIterations)
	}
}

func TestLoadFunnelConfig_FromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "funnel.json")

	jsonContent := `{
  "solver": {
    "tolerance": 0.0001,
    "max_iterations": 50
  },
  "parallel": {
    "max_parallel": 8
  }
}`

	if err := os.WriteFile(configPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadFunnelConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFunnelConfig() error = %v", err)
	}

	if config.Solver.Tolerance != 0.0001 {
		t.Errorf("Solver.Tolerance = %v, want 0.0001", config.Solver.Tolerance)
	}
	if config.Solver.MaxIterations != 50 {
		t.Errorf("Solver.MaxIterations = %d, want 50", config.Solver.MaxIterations)
	}
	if config.Parallel.MaxParallel != 8 {
		t.Errorf("Parallel.MaxParallel = %d, want 8", config.Parallel.MaxParallel)
	}
}

func TestLoadFunnelConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "funnel.yaml")

	// The file sets one value; the environment must win.
	yamlContent := "gate:\n  gate_fraction: 0.05\n"
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("FUNNEL_GATE_FRACTION", "0.02")
	t.Setenv("FUNNEL_MAX_PARALLEL", "16")
	t.Setenv("FUNNEL_LOG_LEVEL", "warn")

	config, err := LoadFunnelConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFunnelConfig() error = %v", err)
	}

	if config.Gate.GateFraction != 0.02 {
		t.Errorf("Gate.GateFraction = %v, want env override 0.02", config.Gate.GateFraction)
	}
	if config.Parallel.MaxParallel != 16 {
		t.Errorf("Parallel.MaxParallel = %d, want 16", config.Parallel.MaxParallel)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", config.Logging.Level)
	}
}

func TestLoadFunnelConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadFunnelConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadFunnelConfig() error = %v", err)
	}
	if config.Gate.GateFraction != lag.DefaultGateFraction {
		t.Errorf("Gate.GateFraction = %v, want default", config.Gate.GateFraction)
	}
}

func TestLoadFunnelConfig_MalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "funnel.yaml")

	if err := os.WriteFile(configPath, []byte("gate: ["), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadFunnelConfig(configPath); err == nil {
		t.Error("LoadFunnelConfig() accepted a malformed file")
	}
}

func TestLoadFunnelConfig_RejectsInvalidMerge(t *testing.T) {
	t.Setenv("FUNNEL_BLEND_STRATEGY", "optimistic")

	_, err := LoadFunnelConfig("")
	if err == nil {
		t.Fatal("LoadFunnelConfig() accepted an unknown blend strategy from env")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %v, want an invalid-config error", err)
	}
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LoggingConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFunnelConfig_ToEngineConfig(t *testing.T) {
	config := DefaultFunnelConfig()
	config.Gate.GateFraction = 0.05
	config.Horizon.MaxSigma = 6.0
	config.Parallel.MaxParallel = 2

	engCfg := config.ToEngineConfig(slog.Default())

	if engCfg.Gate.GateFraction != 0.05 {
		t.Errorf("Gate.GateFraction = %v, want 0.05", engCfg.Gate.GateFraction)
	}
	if engCfg.Horizon.MaxSigma != 6.0 {
		t.Errorf("Horizon.MaxSigma = %v, want 6.0", engCfg.Horizon.MaxSigma)
	}
	if engCfg.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", engCfg.MaxParallel)
	}
	if engCfg.Blend == nil {
		t.Error("Blend strategy not set")
	}
	if engCfg.Dispersion == nil {
		t.Error("Dispersion strategy not set")
	}
	if engCfg.Logger == nil {
		t.Error("Logger not set")
	}
}
