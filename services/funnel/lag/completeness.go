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

import "math"

// CohortObservation is the per-cohort evidence needed by completeness and
// dispersion computations. One observation corresponds to one evidence slice
// restricted to the active query scope.
type CohortObservation struct {
	// AgeDays is the elapsed time since the cohort's anchor event, measured
	// at the scope's observation instant.
	AgeDays float64

	// N is the exposed population of the cohort.
	N float64

	// K is the realized conversion count of the cohort.
	K float64

	// MeanLagDays is the mean observed lag of the cohort's conversions.
	// Only meaningful when HasMeanLag is true.
	MeanLagDays float64

	// HasMeanLag is true when the cohort carried per-day conversion counts
	// from which a mean lag could be derived.
	HasMeanLag bool
}

// EdgeCompleteness computes the exposure-weighted completeness of an edge
// over the cohorts in scope.
//
// Description:
//
//	Each cohort's completeness is the fit CDF at its age; the edge-level
//	value weights cohorts by exposed population N. Only the supplied
//	observations participate: the caller restricts them to the active query
//	scope, and mixing scopes is a correctness bug, not an approximation.
//
// Outputs:
//   - float64: completeness in [0, 1].
//   - error: ErrNoFit when the fit is invalid, ErrInsufficientEvidence when
//     no observation carries exposure.
func EdgeCompleteness(f Fit, cohorts []CohortObservation) (float64, error) {
	if f.Sigma <= 0 {
		return 0, ErrNoFit
	}

	var exposure, weighted float64
	for _, c := range cohorts {
		if c.N <= 0 {
			continue
		}
		exposure += c.N
		weighted += c.N * f.CDF(c.AgeDays)
	}
	if exposure <= 0 {
		return 0, ErrInsufficientEvidence
	}
	return weighted / exposure, nil
}

// -----------------------------------------------------------------------------
// Dispersion strategies
// -----------------------------------------------------------------------------

// DispersionStrategy computes the lag dispersion scalar for one edge.
//
// Implementations must be stateless and safe for concurrent use. fit is nil
// when no lag model is available for the edge.
type DispersionStrategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// LagStdevDays returns the dispersion scalar in days.
	LagStdevDays(fit *Fit, cohorts []CohortObservation) (float64, error)
}

// EmpiricalDispersion computes dispersion as the standard deviation of
// per-cohort mean-lag values, weighted by realized conversions K. Cohorts
// with K = 0 or without a derivable mean lag are excluded. The fit is not
// consulted.
type EmpiricalDispersion struct{}

// Name implements DispersionStrategy.
func (EmpiricalDispersion) Name() string { return "empirical" }

// LagStdevDays implements DispersionStrategy.
func (EmpiricalDispersion) LagStdevDays(_ *Fit, cohorts []CohortObservation) (float64, error) {
	var wsum, xsum float64
	for _, c := range cohorts {
		if c.K <= 0 || !c.HasMeanLag {
			continue
		}
		wsum += c.K
		xsum += c.K * c.MeanLagDays
	}
	if wsum <= 0 {
		return 0, ErrInsufficientEvidence
	}

	mean := xsum / wsum
	var vsum float64
	for _, c := range cohorts {
		if c.K <= 0 || !c.HasMeanLag {
			continue
		}
		d := c.MeanLagDays - mean
		vsum += c.K * d * d
	}
	return math.Sqrt(vsum / wsum), nil
}

// FitImpliedDispersion computes dispersion as the standard deviation implied
// by the fitted distribution itself, ignoring per-cohort spread.
type FitImpliedDispersion struct{}

// Name implements DispersionStrategy.
func (FitImpliedDispersion) Name() string { return "fit_implied" }

// LagStdevDays implements DispersionStrategy.
func (FitImpliedDispersion) LagStdevDays(fit *Fit, _ []CohortObservation) (float64, error) {
	if fit == nil || fit.Sigma <= 0 {
		return 0, ErrNoFit
	}
	return fit.StdevDays(), nil
}
