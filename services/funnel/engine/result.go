// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"time"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
	"github.com/AleutianAI/lagcast/services/funnel/topology"
)

// CacheKey identifies the inputs of one pass for result caching. Two passes
// with equal keys see the same graph, the same scenario, and the same
// evidence scope, so their results are interchangeable.
type CacheKey struct {
	// ScopeKey is topology.Scope.Key().
	ScopeKey string

	// ScenarioKey is topology.Scenario.Key() ("baseline" for nil).
	ScenarioKey string

	// GraphVersion is topology.Graph.Version().
	GraphVersion string
}

// String returns the flattened cache key.
func (k CacheKey) String() string {
	return k.ScopeKey + "|" + k.ScenarioKey + "|" + k.GraphVersion
}

// EdgeStats is the computed statistics for one edge under one pass.
//
// Forecast-internal quantities (the expected-converter count and the
// resolved transition probability) deliberately stay unexported: they are
// propagation state, and exposing them invites consumers to mistake a
// forecast input for an observation.
type EdgeStats struct {
	// Key identifies the edge.
	Key topology.EdgeKey

	// ObservedN and ObservedK are the pooled in-scope evidence counts.
	ObservedN float64
	ObservedK float64

	// PMean is the blended transition probability.
	PMean float64

	// PN is the population arriving at the edge source: observed exposure
	// for anchor-sourced edges, forecast inflow downstream.
	PN float64

	// Completeness is the expected observed fraction of eventual
	// conversions at the scope's observation instant, in [0, 1]. Zero when
	// no lag fit exists.
	Completeness float64

	// T95 is the edge-level 95th percentile lag in days. Zero when no fit
	// exists.
	T95 float64

	// PathT95 is the worst-case (slowest path) cumulative 95th percentile
	// lag from the anchor through this edge, in days. Only meaningful when
	// HasPathT95 is true; an edge unreachable from the anchor has none.
	PathT95    float64
	HasPathT95 bool

	// LagStdevDays is the lag dispersion estimate. Only meaningful when
	// HasLagStdev is true.
	LagStdevDays float64
	HasLagStdev  bool

	// NoFit is true when the edge had no usable lag fit; PMean then falls
	// back to face-value evidence and Completeness is zero.
	NoFit bool

	// Degraded is true when horizon enforcement could not reach the
	// authoritative floor within the dispersion ceiling.
	Degraded bool

	// Active is false when the pass's scenario switched the edge off.
	Active bool

	effectiveP float64
	forecastK  float64
	fit        lag.Fit
	hasFit     bool
}

// LagFit returns the edge's post-enforcement lag fit, when one exists.
func (s *EdgeStats) LagFit() (lag.Fit, bool) {
	return s.fit, s.hasFit
}

// Result is the immutable outcome of one enhancement pass.
//
// Thread Safety:
//
//	Result is read-only after the pass completes and safe to share across
//	goroutines, which is what makes it cacheable.
type Result struct {
	// Key is the pass's cache identity.
	Key CacheKey

	// PassID uniquely identifies this pass in logs and traces.
	PassID string

	// AnchorID is the anchor node the pass was computed from.
	AnchorID string

	// ComputedAt is when the pass finished.
	ComputedAt time.Time

	// Duration is the total pass wall time.
	Duration time.Duration

	edges  map[topology.EdgeKey]*EdgeStats
	order  []topology.EdgeKey
	solver lag.SolverConfig
}

// Edge returns the statistics for one edge.
func (r *Result) Edge(key topology.EdgeKey) (*EdgeStats, bool) {
	s, ok := r.edges[key]
	return s, ok
}

// Edges returns all edge statistics sorted by edge key.
func (r *Result) Edges() []*EdgeStats {
	out := make([]*EdgeStats, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.edges[key])
	}
	return out
}

// EdgeCount returns the number of edges the pass computed.
func (r *Result) EdgeCount() int {
	return len(r.edges)
}

// LagQuantile answers an aggregate lag question across edges: the time by
// which fraction q of the selected edges' eventual converters have
// converted.
//
// Description:
//
//	Each fitted edge contributes its lag distribution weighted by its
//	expected converter count, and the quantile of the resulting mixture is
//	solved numerically. Passing no keys selects every edge in the result.
//	Edges without a fit carry no lag information and are skipped; when no
//	positive converter weights exist the fitted edges are weighted
//	equally.
//
// Inputs:
//   - q: quantile in (0, 1).
//   - keys: edges to include. Empty means all.
//
// Outputs:
//   - float64: the mixture quantile in days.
//   - error: ErrEdgeNotFound for an unknown key, lag.ErrNoComponents when
//     no fitted edge is selected, or a solver error.
func (r *Result) LagQuantile(q float64, keys ...topology.EdgeKey) (float64, error) {
	if len(keys) == 0 {
		keys = r.order
	}

	type weighted struct {
		fit    lag.Fit
		weight float64
	}
	var selected []weighted
	var total float64
	for _, key := range keys {
		s, ok := r.edges[key]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrEdgeNotFound, key)
		}
		if !s.hasFit {
			continue
		}
		selected = append(selected, weighted{fit: s.fit, weight: s.forecastK})
		total += s.forecastK
	}
	if len(selected) == 0 {
		return 0, fmt.Errorf("%w: no fitted edge selected", lag.ErrNoComponents)
	}
	if total <= 0 {
		for i := range selected {
			selected[i].weight = 1
		}
		total = float64(len(selected))
	}

	components := make([]lag.MixtureComponent, len(selected))
	for i, w := range selected {
		components[i] = lag.MixtureComponent{Weight: w.weight / total, Dist: w.fit}
	}
	return lag.MixtureQuantile(components, q, r.solver)
}
