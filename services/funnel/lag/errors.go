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

import "errors"

// Sentinel errors for lag distribution operations.
var (
	// ErrInsufficientStats indicates no usable central lag statistic was
	// supplied. A fit requires at least a median or mean lag in days.
	ErrInsufficientStats = errors.New("insufficient central statistics for lag fit")

	// ErrNonPositiveStat indicates a supplied central statistic was zero or
	// negative. Lag statistics must be strictly positive day counts.
	ErrNonPositiveStat = errors.New("non-positive central statistic")

	// ErrNoFit indicates an operation that requires a fitted lag model was
	// invoked for an edge without one.
	ErrNoFit = errors.New("no lag model available")

	// ErrInsufficientEvidence indicates a completeness or dispersion
	// computation found no usable cohort observations in scope.
	ErrInsufficientEvidence = errors.New("no usable cohort evidence in scope")

	// ErrInvalidHorizon indicates a non-positive authoritative horizon value.
	ErrInvalidHorizon = errors.New("authoritative horizon must be positive")

	// ErrHorizonUnsatisfiable indicates the sigma required to honor an
	// authoritative horizon exceeds the configured ceiling. The returned fit
	// carries the widest feasible sigma and the edge must be flagged degraded.
	ErrHorizonUnsatisfiable = errors.New("authoritative horizon unsatisfiable within sigma ceiling")

	// ErrInvalidQuantile indicates a requested quantile outside (0, 1).
	ErrInvalidQuantile = errors.New("quantile must be in (0, 1)")

	// ErrInvalidWeights indicates mixture weights that are negative or do not
	// sum to 1 within tolerance.
	ErrInvalidWeights = errors.New("mixture weights must be non-negative and sum to 1")

	// ErrNoComponents indicates an empty mixture.
	ErrNoComponents = errors.New("mixture requires at least one component")

	// ErrNoConvergence indicates the quantile solver failed to converge
	// within its tolerance and iteration budget. The quantile is unavailable;
	// no extrapolated estimate is returned.
	ErrNoConvergence = errors.New("quantile solver failed to converge")
)
