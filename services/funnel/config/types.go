// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates funnel engine configuration from
// YAML/JSON files and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/lagcast/services/funnel/engine"
	"github.com/AleutianAI/lagcast/services/funnel/lag"
)

// FunnelConfig contains all funnel-engine configuration.
// This is the top-level config struct that can be loaded from files/env.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type FunnelConfig struct {
	// Fit contains lag-model fitting settings.
	Fit FitConfig `json:"fit" yaml:"fit"`

	// Gate contains delayed-onset detection settings.
	Gate GateConfig `json:"gate" yaml:"gate"`

	// Horizon contains authoritative-horizon enforcement settings.
	Horizon HorizonConfig `json:"horizon" yaml:"horizon"`

	// Solver contains mixture quantile solver settings.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Blend contains rate blending settings.
	Blend BlendConfig `json:"blend" yaml:"blend"`

	// Cache contains result cache settings.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Parallel contains scenario fan-out settings.
	Parallel ParallelConfig `json:"parallel" yaml:"parallel"`

	// Logging contains logging settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// FitConfig contains lognormal fitting settings.
type FitConfig struct {
	DefaultSigma float64 `json:"default_sigma" yaml:"default_sigma"`
	MinSigma     float64 `json:"min_sigma" yaml:"min_sigma"`
	EpsilonDays  float64 `json:"epsilon_days" yaml:"epsilon_days"`
}

// GateConfig contains delayed-onset detection settings.
type GateConfig struct {
	GateFraction float64 `json:"gate_fraction" yaml:"gate_fraction"`
	SustainBins  int     `json:"sustain_bins" yaml:"sustain_bins"`
	MinSample    float64 `json:"min_sample" yaml:"min_sample"`
}

// HorizonConfig contains horizon enforcement settings.
type HorizonConfig struct {
	MaxSigma    float64 `json:"max_sigma" yaml:"max_sigma"`
	EpsilonDays float64 `json:"epsilon_days" yaml:"epsilon_days"`
}

// SolverConfig contains mixture quantile solver settings.
type SolverConfig struct {
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`
	MaxIterations   int     `json:"max_iterations" yaml:"max_iterations"`
	WeightTolerance float64 `json:"weight_tolerance" yaml:"weight_tolerance"`
	MaxBracketDays  float64 `json:"max_bracket_days" yaml:"max_bracket_days"`
}

// BlendConfig contains rate blending settings.
type BlendConfig struct {
	// Strategy selects how observed and forecast rates combine.
	// Currently "completeness_weighted" is the only strategy.
	Strategy string `json:"strategy" yaml:"strategy"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// ParallelConfig contains scenario fan-out settings.
type ParallelConfig struct {
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// SlogLevel maps the configured level name onto a slog level. Unknown
// names map to Info; Validate rejects them before this is reached.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultFunnelConfig returns the default configuration.
//
// Outputs:
//   - FunnelConfig: Default configuration with sensible values.
func DefaultFunnelConfig() FunnelConfig {
	return FunnelConfig{
		Fit: FitConfig{
			DefaultSigma: lag.DefaultSigma,
			MinSigma:     lag.DefaultMinSigma,
			EpsilonDays:  lag.DefaultEpsilonDays,
		},
		Gate: GateConfig{
			GateFraction: lag.DefaultGateFraction,
			SustainBins:  lag.DefaultSustainBins,
			MinSample:    lag.DefaultMinGateSample,
		},
		Horizon: HorizonConfig{
			MaxSigma:    lag.DefaultMaxSigma,
			EpsilonDays: lag.DefaultEpsilonDays,
		},
		Solver: SolverConfig{
			Tolerance:       lag.DefaultSolverTolerance,
			MaxIterations:   lag.DefaultSolverMaxIterations,
			WeightTolerance: lag.DefaultWeightTolerance,
			MaxBracketDays:  lag.DefaultMaxBracketDays,
		},
		Blend: BlendConfig{
			Strategy: "completeness_weighted",
		},
		Cache: CacheConfig{
			Capacity: engine.DefaultCacheCapacity,
		},
		Parallel: ParallelConfig{
			MaxParallel: engine.DefaultMaxParallel,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Non-nil if configuration is invalid.
func (c FunnelConfig) Validate() error {
	if c.Fit.DefaultSigma <= 0 {
		return fmt.Errorf("default_sigma must be > 0")
	}
	if c.Fit.MinSigma <= 0 {
		return fmt.Errorf("min_sigma must be > 0")
	}
	if c.Gate.GateFraction <= 0 || c.Gate.GateFraction >= 1 {
		return fmt.Errorf("gate_fraction must be between 0 and 1 exclusive")
	}
	if c.Gate.SustainBins < 1 {
		return fmt.Errorf("sustain_bins must be >= 1")
	}
	if c.Gate.MinSample <= 0 {
		return fmt.Errorf("min_sample must be > 0")
	}
	if c.Horizon.MaxSigma <= 0 {
		return fmt.Errorf("max_sigma must be > 0")
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0")
	}
	if c.Solver.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1")
	}
	if c.Solver.MaxBracketDays <= 0 {
		return fmt.Errorf("max_bracket_days must be > 0")
	}
	if c.Blend.Strategy != "completeness_weighted" {
		return fmt.Errorf("unknown blend strategy %q", c.Blend.Strategy)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be >= 1")
	}
	if c.Parallel.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be >= 1")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}

// ToEngineConfig converts the loaded configuration into an engine config.
//
// Inputs:
//   - logger: Pass logger. Nil selects slog.Default().
//
// Outputs:
//   - engine.Config: Engine configuration ready for engine.New.
func (c FunnelConfig) ToEngineConfig(logger *slog.Logger) engine.Config {
	return engine.Config{
		Fit: lag.FitConfig{
			DefaultSigma: c.Fit.DefaultSigma,
			MinSigma:     c.Fit.MinSigma,
			EpsilonDays:  c.Fit.EpsilonDays,
		},
		Gate: lag.GateConfig{
			GateFraction: c.Gate.GateFraction,
			SustainBins:  c.Gate.SustainBins,
			MinSample:    c.Gate.MinSample,
		},
		Horizon: lag.HorizonConfig{
			MaxSigma:    c.Horizon.MaxSigma,
			EpsilonDays: c.Horizon.EpsilonDays,
		},
		Solver: lag.SolverConfig{
			Tolerance:       c.Solver.Tolerance,
			MaxIterations:   c.Solver.MaxIterations,
			WeightTolerance: c.Solver.WeightTolerance,
			MaxBracketDays:  c.Solver.MaxBracketDays,
		},
		Blend:       engine.CompletenessWeighted{},
		Dispersion:  lag.EmpiricalDispersion{},
		Logger:      logger,
		MaxParallel: c.Parallel.MaxParallel,
	}
}
