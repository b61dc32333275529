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

// Default fitting parameters.
const (
	// DefaultSigma is the lognormal scale used when the supplied statistics
	// cannot pin the spread (single central statistic, or mean <= median).
	DefaultSigma = 1.0

	// DefaultMinSigma is the floor applied to a moment-matched sigma so a
	// near-degenerate mean/median pair cannot produce zero spread.
	DefaultMinSigma = 0.05

	// DefaultEpsilonDays floors delay-shifted statistics and horizon targets
	// away from zero.
	DefaultEpsilonDays = 1e-3

	// DefaultGateFraction is the cumulative-mass fraction a histogram bin
	// must reach before it can mark the delay onset.
	DefaultGateFraction = 0.01

	// DefaultSustainBins is the number of consecutive bins from the onset
	// that must carry mass for the onset to count.
	DefaultSustainBins = 2

	// DefaultMinGateSample is the minimum histogram mass required before any
	// delay is estimated at all.
	DefaultMinGateSample = 30.0
)

// -----------------------------------------------------------------------------
// Inputs
// -----------------------------------------------------------------------------

// Stats carries the central lag statistics for one edge or slice, in days.
// At least one of median or mean must be present for a fit.
type Stats struct {
	MedianDays float64
	MeanDays   float64
	HasMedian  bool
	HasMean    bool
}

// shifted returns the statistics with the delay subtracted, floored at eps.
func (s Stats) shifted(delta, eps float64) Stats {
	out := s
	if s.HasMedian {
		out.MedianDays = math.Max(s.MedianDays-delta, eps)
	}
	if s.HasMean {
		out.MeanDays = math.Max(s.MeanDays-delta, eps)
	}
	return out
}

// Histogram is an early-window histogram of lag-day counts. Counts[i] is the
// number of conversions with lag in [i, i+1) days; Tail is the count beyond
// the last bin.
type Histogram struct {
	Counts []float64
	Tail   float64
}

// Total returns the total mass of the histogram including the tail bucket.
func (h *Histogram) Total() float64 {
	total := h.Tail
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Merge adds another histogram into this one, growing the bin range as
// needed. Used to pool evidence slices for one edge.
func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	if len(other.Counts) > len(h.Counts) {
		grown := make([]float64, len(other.Counts))
		copy(grown, h.Counts)
		h.Counts = grown
	}
	for i, c := range other.Counts {
		h.Counts[i] += c
	}
	h.Tail += other.Tail
}

// Clone returns a deep copy of the histogram.
func (h *Histogram) Clone() *Histogram {
	counts := make([]float64, len(h.Counts))
	copy(counts, h.Counts)
	return &Histogram{Counts: counts, Tail: h.Tail}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// FitConfig tunes moment matching.
type FitConfig struct {
	// DefaultSigma is used when the statistics cannot pin the spread.
	DefaultSigma float64

	// MinSigma floors the moment-matched sigma.
	MinSigma float64

	// EpsilonDays floors delay-shifted statistics.
	EpsilonDays float64
}

// withDefaults fills zero fields with package defaults.
func (c FitConfig) withDefaults() FitConfig {
	if c.DefaultSigma <= 0 {
		c.DefaultSigma = DefaultSigma
	}
	if c.MinSigma <= 0 {
		c.MinSigma = DefaultMinSigma
	}
	if c.EpsilonDays <= 0 {
		c.EpsilonDays = DefaultEpsilonDays
	}
	return c
}

// GateConfig tunes delay estimation from an early-window histogram.
type GateConfig struct {
	// GateFraction is the cumulative-mass fraction a bin must reach to mark
	// the delay onset.
	GateFraction float64

	// SustainBins is how many consecutive bins from the onset must carry
	// mass. Guards against a stray early count marking a false onset.
	SustainBins int

	// MinSample is the minimum total histogram mass required before any
	// delay is estimated.
	MinSample float64
}

// withDefaults fills zero fields with package defaults.
func (c GateConfig) withDefaults() GateConfig {
	if c.GateFraction <= 0 {
		c.GateFraction = DefaultGateFraction
	}
	if c.SustainBins <= 0 {
		c.SustainBins = DefaultSustainBins
	}
	if c.MinSample <= 0 {
		c.MinSample = DefaultMinGateSample
	}
	return c
}

// -----------------------------------------------------------------------------
// Fitting
// -----------------------------------------------------------------------------

// FitLognormal fits a (possibly delayed) lognormal to the supplied central
// statistics and optional early-window histogram.
//
// Description:
//
//	The delay Delta is estimated first from the histogram via the gated
//	cumulative-mass rule (0 when gating fails or no histogram is present).
//	The base parameters are then moment-matched on the delay-shifted
//	statistics, so CDF(t) evaluates the lognormal at t - Delta.
//
// Inputs:
//   - stats: central lag statistics in days. At least one of median or mean.
//   - hist: optional early-window histogram of lag-day counts. May be nil.
//   - fitCfg: moment-matching tuning. Zero value uses package defaults.
//   - gateCfg: delay-gating tuning. Zero value uses package defaults.
//
// Outputs:
//   - Fit: the fitted distribution.
//   - error: ErrInsufficientStats when no central statistic is present,
//     ErrNonPositiveStat when a required statistic is <= 0. A failed fit
//     means no lag model is available for the edge; the error never panics
//     and carries the offending values.
func FitLognormal(stats Stats, hist *Histogram, fitCfg FitConfig, gateCfg GateConfig) (Fit, error) {
	fitCfg = fitCfg.withDefaults()

	delta := 0.0
	prov := ProvenanceMoments
	if hist != nil {
		if d := EstimateDelta(hist, gateCfg); d > 0 {
			delta = d
			prov = ProvenanceHistogramGated
		}
	}

	mu, sigma, err := momentMatch(stats.shifted(delta, fitCfg.EpsilonDays), fitCfg)
	if err != nil {
		return Fit{}, err
	}

	return Fit{
		Family:     FamilyLognormal,
		Mu:         mu,
		Sigma:      sigma,
		Delta:      delta,
		Provenance: prov,
	}, nil
}

// momentMatch derives lognormal parameters from central statistics.
//
// With both statistics and mean > median the closed forms are
// mu = ln(median) and sigma = sqrt(2 ln(mean/median)). A single statistic,
// or a non-right-skewed pair, falls back to the configured default sigma.
func momentMatch(stats Stats, cfg FitConfig) (mu, sigma float64, err error) {
	switch {
	case stats.HasMedian && stats.HasMean:
		if stats.MedianDays <= 0 || stats.MeanDays <= 0 {
			return 0, 0, fmt.Errorf("%w: median=%.4f mean=%.4f",
				ErrNonPositiveStat, stats.MedianDays, stats.MeanDays)
		}
		mu = math.Log(stats.MedianDays)
		if stats.MeanDays > stats.MedianDays {
			sigma = math.Sqrt(2 * math.Log(stats.MeanDays/stats.MedianDays))
			if sigma < cfg.MinSigma {
				sigma = cfg.MinSigma
			}
		} else {
			sigma = cfg.DefaultSigma
		}
		return mu, sigma, nil

	case stats.HasMedian:
		if stats.MedianDays <= 0 {
			return 0, 0, fmt.Errorf("%w: median=%.4f", ErrNonPositiveStat, stats.MedianDays)
		}
		return math.Log(stats.MedianDays), cfg.DefaultSigma, nil

	case stats.HasMean:
		if stats.MeanDays <= 0 {
			return 0, 0, fmt.Errorf("%w: mean=%.4f", ErrNonPositiveStat, stats.MeanDays)
		}
		sigma = cfg.DefaultSigma
		// Invert E[X] = exp(mu + sigma^2/2) for mu at the default sigma.
		return math.Log(stats.MeanDays) - sigma*sigma/2, sigma, nil

	default:
		return 0, 0, ErrInsufficientStats
	}
}

// EstimateDelta estimates the dead-time delay in days from an early-window
// histogram using the gated cumulative-mass rule.
//
// Description:
//
//	The delay is the smallest bin index where cumulative mass reaches the
//	gate fraction AND mass is sustained for the configured number of
//	consecutive bins. A first-bin-with-any-count rule would be noise
//	sensitive; the gate plus sustain requirement rejects stray early counts.
//	Returns 0 when the histogram mass is below the minimum sample, when no
//	bin passes the gate, or when the gated onset is bin 0 (no delay).
func EstimateDelta(h *Histogram, cfg GateConfig) float64 {
	cfg = cfg.withDefaults()

	total := h.Total()
	if total <= 0 || total < cfg.MinSample {
		return 0
	}

	cum := 0.0
	for i, c := range h.Counts {
		cum += c
		if cum/total < cfg.GateFraction {
			continue
		}
		if !sustained(h, i, cfg.SustainBins) {
			continue
		}
		return float64(i)
	}
	return 0
}

// sustained reports whether bins [start, start+n) all carry mass. Bins past
// the end of the histogram count as sustained only when the tail bucket
// carries mass.
func sustained(h *Histogram, start, n int) bool {
	for j := 0; j < n; j++ {
		idx := start + j
		if idx >= len(h.Counts) {
			return h.Tail > 0
		}
		if h.Counts[idx] <= 0 {
			return false
		}
	}
	return true
}
