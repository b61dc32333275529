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

import "fmt"

// Default solver parameters.
const (
	// DefaultSolverTolerance is the bisection interval width at which the
	// solver accepts the midpoint.
	DefaultSolverTolerance = 1e-6

	// DefaultSolverMaxIterations bounds the bisection loop.
	DefaultSolverMaxIterations = 200

	// DefaultWeightTolerance is the allowed deviation of the weight sum
	// from 1.
	DefaultWeightTolerance = 1e-6

	// DefaultMaxBracketDays bounds the geometric bracket expansion. A
	// mixture whose CDF cannot reach the target inside this range does not
	// converge.
	DefaultMaxBracketDays = 1e9
)

// Distribution is anything exposing a CDF over lag days. Fit satisfies it.
type Distribution interface {
	CDF(t float64) float64
}

// MixtureComponent pairs a slice distribution with its mixture weight,
// typically the slice's relative population share.
type MixtureComponent struct {
	Weight float64
	Dist   Distribution
}

// SolverConfig tunes the mixture quantile solver.
type SolverConfig struct {
	// Tolerance is the bisection interval width at which the solver accepts
	// the midpoint.
	Tolerance float64

	// MaxIterations bounds the bisection loop.
	MaxIterations int

	// WeightTolerance is the allowed deviation of the weight sum from 1.
	WeightTolerance float64

	// MaxBracketDays bounds the geometric bracket expansion.
	MaxBracketDays float64
}

// withDefaults fills zero fields with package defaults.
func (c SolverConfig) withDefaults() SolverConfig {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultSolverTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultSolverMaxIterations
	}
	if c.WeightTolerance <= 0 {
		c.WeightTolerance = DefaultWeightTolerance
	}
	if c.MaxBracketDays <= 0 {
		c.MaxBracketDays = DefaultMaxBracketDays
	}
	return c
}

// MixtureQuantile solves for the lag t such that the weighted mixture CDF
// equals the target quantile.
//
// Description:
//
//	The mixture CDF sum(w_i * F_i(t)) is monotone non-decreasing because
//	every component CDF is, so bisection over an expanding bracket finds the
//	root. No closed form exists: a mixture quantile is not a weighted
//	average of per-component quantiles.
//
// Inputs:
//   - components: the per-slice CDFs with weights summing to 1. The slices
//     are expected to partition the population (MECE).
//   - q: target quantile in (0, 1), e.g. 0.5 for the mixture median.
//   - cfg: solver tuning. Zero value uses package defaults.
//
// Outputs:
//   - float64: the quantile in days.
//   - error: ErrNoComponents, ErrInvalidQuantile, ErrInvalidWeights on bad
//     input; ErrNoConvergence when the bracket or iteration budget runs out.
//     On ErrNoConvergence the quantile is unavailable; no extrapolated value
//     is returned.
func MixtureQuantile(components []MixtureComponent, q float64, cfg SolverConfig) (float64, error) {
	cfg = cfg.withDefaults()

	if len(components) == 0 {
		return 0, ErrNoComponents
	}
	if q <= 0 || q >= 1 {
		return 0, fmt.Errorf("%w: got %.4f", ErrInvalidQuantile, q)
	}

	var sum float64
	for _, c := range components {
		if c.Weight < 0 {
			return 0, fmt.Errorf("%w: negative weight %.4f", ErrInvalidWeights, c.Weight)
		}
		if c.Dist == nil {
			return 0, fmt.Errorf("%w: nil distribution", ErrNoComponents)
		}
		sum += c.Weight
	}
	if diff := sum - 1; diff > cfg.WeightTolerance || diff < -cfg.WeightTolerance {
		return 0, fmt.Errorf("%w: sum=%.6f", ErrInvalidWeights, sum)
	}

	mixture := func(t float64) float64 {
		var m float64
		for _, c := range components {
			m += c.Weight * c.Dist.CDF(t)
		}
		return m
	}

	// Expand the bracket until the mixture CDF crosses the target.
	lo, hi := 0.0, 1.0
	for mixture(hi) < q {
		hi *= 2
		if hi > cfg.MaxBracketDays {
			return 0, fmt.Errorf("%w: mixture CDF below %.4f at %.0f days",
				ErrNoConvergence, q, cfg.MaxBracketDays)
		}
	}

	for i := 0; i < cfg.MaxIterations; i++ {
		if hi-lo <= cfg.Tolerance {
			return (lo + hi) / 2, nil
		}
		mid := (lo + hi) / 2
		if mixture(mid) < q {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0, fmt.Errorf("%w: interval %.2e after %d iterations",
		ErrNoConvergence, hi-lo, cfg.MaxIterations)
}
