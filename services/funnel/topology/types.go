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
	"fmt"
	"time"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 10_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 100_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Node is one step of the conversion graph.
type Node struct {
	// ID is the unique node identifier.
	ID string

	// IsAnchor marks a graph entry point with no meaningful inbound lag.
	// Anchor events define cohort age zero for path-wise maturity.
	IsAnchor bool

	// IsAbsorbing marks a terminal state with no meaningful outbound
	// transitions.
	IsAbsorbing bool
}

// EdgeKey identifies a directed edge by its ordered endpoints.
type EdgeKey struct {
	From string
	To   string
}

// String returns "from->to" for logs and cache keys.
func (k EdgeKey) String() string {
	return k.From + "->" + k.To
}

// CaseProbability is one entry of an edge's ordered conditional-probability
// list. Case is an opaque case-state label; this package matches labels
// verbatim and never interprets their syntax.
type CaseProbability struct {
	Case string
	P    float64
}

// Edge is a directed conversion transition.
//
// An edge carries only structural inputs. Computed statistics (forecast
// population, blended probability, horizons) belong to the engine's result
// object, never to the topology.
type Edge struct {
	// From is the source node ID.
	From string

	// To is the target node ID.
	To string

	// BaselineP is the structural prior transition probability used for
	// forecasting when no scenario case selects one. Only meaningful when
	// HasBaselineP is true.
	BaselineP float64

	// HasBaselineP is true when a structural prior was supplied.
	HasBaselineP bool

	// ConditionalP is the ordered list of case-conditional probabilities.
	// Under a scenario, the first entry whose case label is active wins.
	ConditionalP []CaseProbability
}

// Key returns the edge's identifying key.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}

// Slice is one unit of observed evidence for one edge under one context
// (channel, geography, cohort). Slices are immutable evidence: the engine
// never mutates them.
type Slice struct {
	// Context labels the slice within its edge (e.g. a channel name).
	Context string

	// CohortDate is the cohort's start date. Zero when unknown.
	CohortDate time.Time

	// N is the exposed population.
	N float64

	// K is the observed conversion count.
	K float64

	// NDaily optionally breaks exposure down by day of entry.
	NDaily []float64

	// KDaily optionally breaks conversions down by lag day: KDaily[d] is
	// the count of conversions with lag in [d, d+1) days.
	KDaily []float64

	// Histogram is an optional early-window histogram of lag-day counts.
	Histogram *lag.Histogram
}

// HasCohortDate reports whether the slice carries a cohort date.
func (s *Slice) HasCohortDate() bool {
	return !s.CohortDate.IsZero()
}

// validate checks slice counts for internal consistency.
func (s *Slice) validate() error {
	if s.N < 0 || s.K < 0 {
		return fmt.Errorf("%w: negative counts n=%.2f k=%.2f", ErrInvalidSlice, s.N, s.K)
	}
	for _, v := range s.NDaily {
		if v < 0 {
			return fmt.Errorf("%w: negative daily exposure", ErrInvalidSlice)
		}
	}
	for _, v := range s.KDaily {
		if v < 0 {
			return fmt.Errorf("%w: negative daily conversions", ErrInvalidSlice)
		}
	}
	exposure := s.N
	if exposure == 0 {
		for _, v := range s.NDaily {
			exposure += v
		}
	}
	if s.K > exposure {
		return fmt.Errorf("%w: conversions %.2f exceed exposure %.2f", ErrInvalidSlice, s.K, exposure)
	}
	return nil
}
