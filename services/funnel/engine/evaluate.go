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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
	"github.com/AleutianAI/lagcast/services/funnel/topology"
)

// edgeState is the per-edge working set of one pass. It accumulates across
// stages and is materialized into EdgeStats at the end.
type edgeState struct {
	key  topology.EdgeKey
	edge *topology.Edge
	agg  topology.Aggregate

	active bool

	fit      lag.Fit
	hasFit   bool
	degraded bool

	completeness float64
	lagStdev     float64
	hasLagStdev  bool

	// effectiveP is the resolved transition probability, computed exactly
	// once in the constraining stage. Later stages read it; none may
	// re-derive it.
	effectiveP float64

	pn        float64
	forecastK float64

	pathT95    float64
	hasPathT95 bool

	pMean float64
}

// passRun is the working set of one pass: snapshot, per-edge states, and
// the orders the stages iterate in.
type passRun struct {
	snap   *Snapshot
	states map[topology.EdgeKey]*edgeState

	// order holds the edge keys sorted for deterministic iteration.
	order []topology.EdgeKey

	// topo is the node topological order both propagation stages share.
	topo []string
}

// newPassRun builds the working set from a validated snapshot.
func newPassRun(snap *Snapshot) (*passRun, error) {
	topo, err := snap.Graph.TopoOrder()
	if err != nil {
		return nil, err
	}

	edges := snap.Graph.Edges()
	run := &passRun{
		snap:   snap,
		states: make(map[topology.EdgeKey]*edgeState, len(edges)),
		order:  make([]topology.EdgeKey, 0, len(edges)),
		topo:   topo,
	}
	for _, edge := range edges {
		key := edge.Key()
		run.states[key] = &edgeState{key: key, edge: edge, active: true}
		run.order = append(run.order, key)
	}
	return run, nil
}

// stageFit aggregates in-scope evidence per edge and fits the delayed
// lognormal lag model where the central statistics allow one.
//
// An edge that cannot be fitted is not an error: it is flagged no-fit and
// treated as immediate-conversion for propagation. Only data corruption
// (negative central statistics) is worth a log line.
func (e *Engine) stageFit(_ context.Context, run *passRun) error {
	evidence := run.snap.Evidence
	if evidence == nil {
		evidence = topology.NewEvidenceSet()
	}

	for _, key := range run.order {
		st := run.states[key]
		st.agg = evidence.Aggregate(key, run.snap.Scope)

		stats := st.agg.Stats()
		if !stats.HasMean && !stats.HasMedian {
			continue
		}

		fit, err := lag.FitLognormal(stats, st.agg.Histogram, e.cfg.Fit, e.cfg.Gate)
		if err != nil {
			if errors.Is(err, lag.ErrNonPositiveStat) {
				e.logger.Warn("refusing lag fit",
					slog.String("edge", key.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			if errors.Is(err, lag.ErrInsufficientStats) {
				continue
			}
			return fmt.Errorf("edge %s: %w", key, err)
		}
		st.fit = fit
		st.hasFit = true
	}
	return nil
}

// stageConstrain applies scenario activity, enforces authoritative horizon
// floors, and derives the per-edge statistics that depend on the final
// (post-enforcement) fit: completeness, dispersion, and the resolved
// transition probability.
//
// Ordering matters here. Completeness must see the enforced fit, otherwise
// a widened edge would claim the maturity of its unwidened model and
// over-trust young evidence.
func (e *Engine) stageConstrain(_ context.Context, run *passRun) error {
	scenario := run.snap.Scenario

	for _, key := range run.order {
		st := run.states[key]

		st.active = scenario.EdgeActive(key)
		selectedP, hasSelected := scenario.SelectP(st.edge)
		if st.active && hasSelected && selectedP == 0 {
			st.active = false
		}

		if st.hasFit {
			if auth, ok := run.snap.Horizons[key]; ok {
				enforced, err := lag.EnforceHorizon(st.fit, auth, e.cfg.Horizon)
				if err != nil && !errors.Is(err, lag.ErrHorizonUnsatisfiable) {
					return fmt.Errorf("edge %s: %w", key, err)
				}
				st.fit = enforced
				if err != nil {
					st.degraded = true
					e.logger.Warn("authoritative horizon unsatisfiable",
						slog.String("edge", key.String()),
						slog.Float64("horizon_days", auth),
						slog.Float64("sigma_ceiling", st.fit.Sigma),
					)
				}
			}
			if c, err := lag.EdgeCompleteness(st.fit, st.agg.Cohorts); err == nil {
				st.completeness = c
			}
		}

		var fitPtr *lag.Fit
		if st.hasFit {
			fitPtr = &st.fit
		}
		if d, err := e.cfg.Dispersion.LagStdevDays(fitPtr, st.agg.Cohorts); err == nil {
			st.lagStdev = d
			st.hasLagStdev = true
		}

		st.effectiveP = resolveEffectiveP(st, hasSelected, selectedP)
	}
	return nil
}

// resolveEffectiveP resolves the forward-looking transition probability for
// one edge: scenario selection first, then the structural prior, then
// completeness-corrected evidence, then nothing.
//
// The completeness correction divides the observed rate by the expected
// observed fraction, recovering the eventual rate from a partial view; the
// result is capped at 1. Without a fit the observed rate is taken at face
// value.
func resolveEffectiveP(st *edgeState, hasSelected bool, selectedP float64) float64 {
	if !st.active {
		return 0
	}
	if hasSelected {
		return selectedP
	}
	if st.edge.HasBaselineP {
		return st.edge.BaselineP
	}
	if st.agg.HasEvidence() && st.agg.N > 0 {
		rate := st.agg.K / st.agg.N
		if st.hasFit && st.completeness > 0 {
			corrected := rate / st.completeness
			if corrected > 1 {
				corrected = 1
			}
			return corrected
		}
		return rate
	}
	return 0
}
