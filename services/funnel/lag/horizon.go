// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lag

import (
	"fmt"
	"math"
)

// Default horizon enforcement parameters.
const (
	// DefaultMaxSigma is the ceiling on the sigma a horizon constraint may
	// demand. Beyond it the constraint is unsatisfiable within the family.
	DefaultMaxSigma = 4.0
)

// HorizonConfig tunes authoritative horizon enforcement.
type HorizonConfig struct {
	// MaxSigma is the widest sigma enforcement may produce.
	MaxSigma float64

	// EpsilonDays floors the post-delay horizon target.
	EpsilonDays float64
}

// withDefaults fills zero fields with package defaults.
func (c HorizonConfig) withDefaults() HorizonConfig {
	if c.MaxSigma <= 0 {
		c.MaxSigma = DefaultMaxSigma
	}
	if c.EpsilonDays <= 0 {
		c.EpsilonDays = DefaultEpsilonDays
	}
	return c
}

// EnforceHorizon applies an authoritative 95th-percentile floor to a fit.
//
// Description:
//
//	The authoritative horizon authT95 is a floor on total lag: the fit's
//	implied 95th percentile must not come out below it. The horizon converts
//	to the post-delay frame as max(authT95 - Delta, epsilon); if the current
//	sigma already implies a percentile at or past that target, the fit is
//	returned unchanged. Otherwise sigma grows to the closed-form value
//	(ln(target) - Mu) / z95. Enforcement is one-way: sigma never shrinks to
//	meet a horizon smaller than the model already implies.
//
// Inputs:
//   - f: the fitted distribution.
//   - authT95: authoritative 95th-percentile total lag in days. Must be > 0.
//   - cfg: enforcement tuning. Zero value uses package defaults.
//
// Outputs:
//   - Fit: the (possibly widened) fit. Always usable.
//   - error: ErrInvalidHorizon for a non-positive horizon (fit unchanged);
//     ErrHorizonUnsatisfiable when the required sigma exceeds the ceiling,
//     in which case the returned fit carries the widest feasible sigma and
//     the caller must flag the edge degraded.
func EnforceHorizon(f Fit, authT95 float64, cfg HorizonConfig) (Fit, error) {
	cfg = cfg.withDefaults()

	if authT95 <= 0 {
		return f, fmt.Errorf("%w: got %.4f", ErrInvalidHorizon, authT95)
	}
	if f.Sigma <= 0 {
		return f, ErrNoFit
	}

	xTarget := math.Max(authT95-f.Delta, cfg.EpsilonDays)
	required := (math.Log(xTarget) - f.Mu) / zScore(0.95)

	if required <= f.Sigma {
		// Model already meets or exceeds the floor.
		return f, nil
	}
	if required > cfg.MaxSigma {
		f.Sigma = cfg.MaxSigma
		return f, fmt.Errorf("%w: required sigma %.4f exceeds ceiling %.4f",
			ErrHorizonUnsatisfiable, required, cfg.MaxSigma)
	}

	f.Sigma = required
	return f, nil
}
