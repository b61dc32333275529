// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lag provides time-to-conversion distribution fitting and the
// derived statistics the funnel engine builds on: completeness, dispersion,
// horizon enforcement, and mixture quantiles.
//
// # Model
//
// Conversion lag T decomposes as T = Delta + X, where Delta >= 0 is a dead
// time in days during which no conversion occurs and X is lognormal:
//
//	CDF(t)      = 0                                  for t <= Delta
//	CDF(t)      = Phi((ln(t - Delta) - Mu) / Sigma)  for t >  Delta
//	Quantile(p) = Delta + exp(Mu + z(p) * Sigma)
//
// Parameters come from closed-form moment matching on a median and/or mean
// lag; Delta comes from an early-window histogram via a gated cumulative-mass
// rule that rejects stray early counts. See FitLognormal.
//
// # Completeness
//
// A cohort observed t days after its anchor event has completeness CDF(t):
// the fraction of its eventual conversions expected to have occurred already.
// EdgeCompleteness pools cohorts weighted by exposed population.
//
// # Horizon enforcement
//
// EnforceHorizon applies an authoritative 95th-percentile floor to a fit.
// Enforcement is strictly one-way: sigma may widen to honor a floor, never
// narrow to meet a smaller one.
//
// # Usage
//
//	fit, err := lag.FitLognormal(stats, hist, lag.FitConfig{}, lag.GateConfig{})
//	if err != nil {
//	    // no lag model for this edge; treat conservatively
//	}
//	completeness := fit.CDF(ageDays)
//	q, err := lag.MixtureQuantile(components, 0.5, lag.SolverConfig{})
//
// # Thread Safety
//
// All functions are pure and all types are immutable values; everything in
// this package is safe for concurrent use.
package lag
