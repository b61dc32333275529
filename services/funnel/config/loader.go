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
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadFunnelConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - FunnelConfig: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or validation fails.
func LoadFunnelConfig(configPath string) (FunnelConfig, error) {
	// Start with defaults
	config := DefaultFunnelConfig()

	// Load from file if specified
	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override from environment variables
	loadConfigFromEnv(&config)

	// Validate
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadConfigFile(path string, config *FunnelConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadConfigFromEnv(config *FunnelConfig) {
	// Gate
	if v := os.Getenv("FUNNEL_GATE_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gate.GateFraction = f
		}
	}
	if v := os.Getenv("FUNNEL_GATE_SUSTAIN_BINS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Gate.SustainBins = i
		}
	}
	if v := os.Getenv("FUNNEL_GATE_MIN_SAMPLE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gate.MinSample = f
		}
	}

	// Fit and horizon
	if v := os.Getenv("FUNNEL_DEFAULT_SIGMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Fit.DefaultSigma = f
		}
	}
	if v := os.Getenv("FUNNEL_MAX_SIGMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Horizon.MaxSigma = f
		}
	}

	// Solver
	if v := os.Getenv("FUNNEL_SOLVER_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Solver.Tolerance = f
		}
	}

	// Blend
	if v := os.Getenv("FUNNEL_BLEND_STRATEGY"); v != "" {
		config.Blend.Strategy = v
	}

	// Cache and parallelism
	if v := os.Getenv("FUNNEL_CACHE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Cache.Capacity = i
		}
	}
	if v := os.Getenv("FUNNEL_MAX_PARALLEL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Parallel.MaxParallel = i
		}
	}

	// Logging
	if v := os.Getenv("FUNNEL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
