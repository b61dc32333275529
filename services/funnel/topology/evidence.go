// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"sort"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
)

// EvidenceSet holds the observed evidence slices for a graph, keyed by edge.
//
// Thread Safety:
//
//	EvidenceSet is NOT safe for concurrent mutation. The expected lifecycle
//	mirrors Graph: a single writer populates it with Add(), then the engine
//	reads it concurrently. Slices are never mutated after Add.
type EvidenceSet struct {
	slices map[EdgeKey][]*Slice
	count  int
}

// NewEvidenceSet creates an empty evidence set.
func NewEvidenceSet() *EvidenceSet {
	return &EvidenceSet{slices: make(map[EdgeKey][]*Slice)}
}

// Add appends an evidence slice for an edge.
//
// The slice is validated and stored by copy; the caller's value is not
// retained.
//
// Outputs:
//   - error: ErrInvalidSlice for negative counts or conversions exceeding
//     exposure, wrapped in an EdgeError naming the edge.
func (es *EvidenceSet) Add(key EdgeKey, s Slice) error {
	if err := s.validate(); err != nil {
		return &EdgeError{Key: key, Err: err}
	}
	stored := s
	es.slices[key] = append(es.slices[key], &stored)
	es.count++
	return nil
}

// Slices returns all slices recorded for an edge, unscoped. The returned
// slice is owned by the set; callers must not modify it.
func (es *EvidenceSet) Slices(key EdgeKey) []*Slice {
	return es.slices[key]
}

// EdgeKeys returns the keys of all edges carrying evidence, sorted.
func (es *EvidenceSet) EdgeKeys() []EdgeKey {
	out := make([]EdgeKey, 0, len(es.slices))
	for k := range es.slices {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// SliceCount returns the total number of slices across all edges.
func (es *EvidenceSet) SliceCount() int {
	return es.count
}

// Aggregate is the pooled, scope-restricted evidence for one edge: summed
// counts, pooled per-day arrays and histogram, central lag statistics, and
// the per-cohort observations completeness and dispersion consume.
type Aggregate struct {
	// Key identifies the edge.
	Key EdgeKey

	// N is the pooled exposed population of the in-scope slices.
	N float64

	// K is the pooled observed conversion count.
	K float64

	// KDaily is the element-wise pooled lag-day conversion counts.
	KDaily []float64

	// Histogram is the pooled early-window histogram, nil when no in-scope
	// slice carried one.
	Histogram *lag.Histogram

	// MeanLagDays is the mean observed lag, derived from the pooled KDaily
	// at bin centers. Only meaningful when HasMeanLag is true.
	MeanLagDays float64
	HasMeanLag  bool

	// MedianLagDays is the median lag: the first lag day where cumulative
	// pooled conversions reach half of K. Unset when the half point has not
	// been observed inside the tracked day range.
	MedianLagDays float64
	HasMedianLag  bool

	// Cohorts holds one observation per in-scope slice.
	Cohorts []lag.CohortObservation

	// SliceCount is the number of in-scope slices pooled.
	SliceCount int
}

// HasEvidence reports whether any in-scope slice was pooled.
func (a *Aggregate) HasEvidence() bool {
	return a.SliceCount > 0
}

// ObservedRate returns the raw in-scope conversion rate K/N, or 0 when
// there is no exposure.
func (a *Aggregate) ObservedRate() float64 {
	if a.N <= 0 {
		return 0
	}
	return a.K / a.N
}

// Stats returns the central statistics in the fitter's input form.
func (a *Aggregate) Stats() lag.Stats {
	return lag.Stats{
		MedianDays: a.MedianLagDays,
		HasMedian:  a.HasMedianLag,
		MeanDays:   a.MeanLagDays,
		HasMean:    a.HasMeanLag,
	}
}

// Aggregate pools the evidence for one edge restricted to exactly the given
// scope.
//
// Description:
//
//	Only slices the scope admits participate; evidence outside the scope
//	never leaks in, because approximating one scope's statistics from a
//	broader dataset is a correctness bug. Exposure falls back to the summed
//	NDaily when a slice carries daily exposure but no total.
//
// Inputs:
//   - key: the edge to pool.
//   - scope: the active query scope.
//
// Outputs:
//   - Aggregate: pooled counts and statistics. Zero-valued (HasEvidence()
//     false) when no slice is in scope.
func (es *EvidenceSet) Aggregate(key EdgeKey, scope Scope) Aggregate {
	agg := Aggregate{Key: key}

	for _, sl := range es.slices[key] {
		if !scope.Contains(sl) {
			continue
		}
		agg.SliceCount++

		n := sl.N
		if n == 0 && len(sl.NDaily) > 0 {
			for _, v := range sl.NDaily {
				n += v
			}
		}
		agg.N += n
		agg.K += sl.K

		if len(sl.KDaily) > 0 {
			if len(sl.KDaily) > len(agg.KDaily) {
				grown := make([]float64, len(sl.KDaily))
				copy(grown, agg.KDaily)
				agg.KDaily = grown
			}
			for i, v := range sl.KDaily {
				agg.KDaily[i] += v
			}
		}

		if sl.Histogram != nil {
			if agg.Histogram == nil {
				agg.Histogram = sl.Histogram.Clone()
			} else {
				agg.Histogram.Merge(sl.Histogram)
			}
		}

		mean, ok := meanLagDays(sl.KDaily)
		agg.Cohorts = append(agg.Cohorts, lag.CohortObservation{
			AgeDays:     scope.AgeDays(sl),
			N:           n,
			K:           sl.K,
			MeanLagDays: mean,
			HasMeanLag:  ok,
		})
	}

	if mean, ok := meanLagDays(agg.KDaily); ok {
		agg.MeanLagDays, agg.HasMeanLag = mean, true
	}
	if med, ok := medianLagDays(agg.KDaily, agg.K); ok {
		agg.MedianLagDays, agg.HasMedianLag = med, true
	}
	return agg
}

// meanLagDays computes the mean lag from per-day conversion counts at bin
// centers: day d contributes lag d+0.5.
func meanLagDays(kDaily []float64) (float64, bool) {
	var total, weighted float64
	for d, k := range kDaily {
		total += k
		weighted += (float64(d) + 0.5) * k
	}
	if total <= 0 {
		return 0, false
	}
	return weighted / total, true
}

// medianLagDays finds the lag day where cumulative conversions reach half of
// the total conversion count K. K may exceed the pooled daily counts when
// late conversions fall outside the tracked day range; the median is then
// reported only if the half point still falls inside it.
func medianLagDays(kDaily []float64, totalK float64) (float64, bool) {
	if totalK <= 0 {
		return 0, false
	}
	target := totalK / 2
	cum := 0.0
	for d, k := range kDaily {
		cum += k
		if cum >= target {
			return float64(d) + 0.5, true
		}
	}
	return 0, false
}
