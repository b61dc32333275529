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

// -----------------------------------------------------------------------------
// Distribution family and provenance tags
// -----------------------------------------------------------------------------

// Family identifies the parametric family of a lag fit.
type Family int

const (
	// FamilyLognormal is a lognormal lag distribution, optionally delayed by
	// a dead-time shift Delta during which no conversions occur.
	FamilyLognormal Family = iota
)

// String returns the string representation of the Family.
func (f Family) String() string {
	switch f {
	case FamilyLognormal:
		return "lognormal"
	default:
		return "unknown"
	}
}

// Provenance records how a fit's parameters were derived.
type Provenance int

const (
	// ProvenanceMoments indicates parameters derived from central statistics
	// via moment matching, with Delta = 0.
	ProvenanceMoments Provenance = iota

	// ProvenanceHistogramGated indicates a positive Delta was estimated from
	// an early-window histogram via the gated cumulative-mass rule, with the
	// base parameters refit on delay-shifted statistics.
	ProvenanceHistogramGated
)

// String returns the string representation of the Provenance.
func (p Provenance) String() string {
	switch p {
	case ProvenanceMoments:
		return "moments"
	case ProvenanceHistogramGated:
		return "histogram_gated"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Fit
// -----------------------------------------------------------------------------

// Fit holds the parameters of a fitted (possibly delayed) lag distribution.
//
// Total lag T decomposes as T = Delta + X where X is lognormal with location
// Mu and scale Sigma. Delta is a dead time in days during which no conversion
// can occur. All times are in days.
//
// Thread Safety: Fit is an immutable value type; copies are independent.
type Fit struct {
	// Family is the parametric family of the fit.
	Family Family

	// Mu is the lognormal location parameter of the post-delay variable.
	Mu float64

	// Sigma is the lognormal scale parameter. Always > 0 for a valid fit.
	Sigma float64

	// Delta is the dead time in days. Always >= 0.
	Delta float64

	// Provenance records how the parameters were derived.
	Provenance Provenance
}

// CDF returns the probability that the lag is at most t days.
//
// Returns 0 for t <= Delta. This is also the completeness of a cohort
// observed t days after its anchor event: the fraction of eventual
// conversions expected to have already occurred.
func (f Fit) CDF(t float64) float64 {
	if t <= f.Delta || f.Sigma <= 0 {
		return 0
	}
	return normalCDF((math.Log(t-f.Delta) - f.Mu) / f.Sigma)
}

// Quantile returns the lag t such that CDF(t) = p.
//
// p is clamped to (0, 1) exclusive; see zScore.
func (f Fit) Quantile(p float64) float64 {
	return f.Delta + math.Exp(f.Mu+zScore(p)*f.Sigma)
}

// T95 returns the 95th-percentile lag in days, including the delay.
func (f Fit) T95() float64 {
	return f.Quantile(0.95)
}

// Mean returns the expected lag in days, including the delay.
func (f Fit) Mean() float64 {
	return f.Delta + math.Exp(f.Mu+f.Sigma*f.Sigma/2)
}

// StdevDays returns the standard deviation of the lag in days.
//
// The delay shifts location only, so the spread is that of the lognormal
// component alone.
func (f Fit) StdevDays() float64 {
	s2 := f.Sigma * f.Sigma
	return math.Sqrt(math.Exp(s2)-1) * math.Exp(f.Mu+s2/2)
}

// -----------------------------------------------------------------------------
// Normal distribution helpers
// -----------------------------------------------------------------------------

// normalCDF computes the standard normal CDF at x.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt(2)))
}

// zScore returns the z-score for a given cumulative probability.
//
// p is clamped to [1e-10, 1-1e-10] to keep the inverse finite.
func zScore(p float64) float64 {
	if p < 1e-10 {
		p = 1e-10
	}
	if p > 1-1e-10 {
		p = 1 - 1e-10
	}
	return math.Sqrt(2) * math.Erfinv(2*p-1)
}
