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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
	"github.com/AleutianAI/lagcast/services/funnel/topology"
)

var (
	tracer = otel.Tracer("lagcast.funnel")
	meter  = otel.Meter("lagcast.funnel")
)

// DefaultMaxParallel is the default concurrent pass limit for RunMany.
const DefaultMaxParallel = 4

// Snapshot is the complete, immutable input set of one enhancement pass.
//
// Everything a pass reads is in the snapshot; the engine holds no state
// between passes, which is what makes concurrent passes over shared inputs
// safe.
type Snapshot struct {
	// Graph is the frozen conversion graph.
	Graph *topology.Graph

	// Evidence holds the observed slices. May be nil for a pure-forecast
	// pass.
	Evidence *topology.EvidenceSet

	// Scenario is the case-state selection to compute under. Nil means
	// baseline: every edge active, structural priors in effect.
	Scenario *topology.Scenario

	// Scope restricts which evidence participates and fixes the
	// observation instant.
	Scope topology.Scope

	// Anchor is the node ID cohort ages and path maturity are measured
	// from. Must name an anchor-flagged node in the graph.
	Anchor string

	// Horizons maps edges to authoritative 95th percentile lag floors in
	// days. A fitted edge's t95 is widened up to its floor; fits are never
	// tightened.
	Horizons map[topology.EdgeKey]float64
}

// Config configures an Engine.
//
// The zero value is usable: every field falls back to the package default
// documented on its type.
type Config struct {
	// Fit configures lognormal moment matching.
	Fit lag.FitConfig

	// Gate configures delayed-onset detection.
	Gate lag.GateConfig

	// Horizon configures authoritative horizon enforcement.
	Horizon lag.HorizonConfig

	// Solver configures the mixture quantile solver used by
	// Result.LagQuantile.
	Solver lag.SolverConfig

	// Blend combines observed and forecast rates. Defaults to
	// CompletenessWeighted.
	Blend BlendStrategy

	// Dispersion estimates per-edge lag spread. Defaults to
	// lag.EmpiricalDispersion.
	Dispersion lag.DispersionStrategy

	// Logger receives pass logs. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxParallel bounds concurrent passes in RunMany. Defaults to
	// DefaultMaxParallel.
	MaxParallel int
}

// Engine computes statistical enhancement passes over conversion graphs.
//
// Description:
//
//	Each Run is one pass: fit per-edge lag models from scoped evidence,
//	enforce authoritative horizons, propagate path maturity and forecast
//	population through the graph, and blend observed rates with forecasts
//	by completeness. The pass pipeline is strictly staged; a failure in
//	any stage discards the pass.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Passes share no mutable state; all
//	working data lives in per-pass structures.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	passLatency   metric.Float64Histogram
	passTotal     metric.Int64Counter
	edgesFitted   metric.Int64Counter
	edgesNoFit    metric.Int64Counter
	edgesDegraded metric.Int64Counter
}

// New creates an Engine from the given configuration.
//
// Inputs:
//   - cfg: engine configuration. Zero-value fields use package defaults.
//
// Outputs:
//   - *Engine: the configured engine. Never nil.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Blend == nil {
		cfg.Blend = CompletenessWeighted{}
	}
	if cfg.Dispersion == nil {
		cfg.Dispersion = lag.EmpiricalDispersion{}
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Engine{cfg: cfg, logger: cfg.Logger}
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution.
func (e *Engine) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.passLatency, err = meter.Float64Histogram("funnel_pass_duration_seconds",
			metric.WithDescription("Wall time of enhancement passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "pass_latency: "+err.Error())
		}

		e.passTotal, err = meter.Int64Counter("funnel_pass_total",
			metric.WithDescription("Number of enhancement passes"),
		)
		if err != nil {
			initErrors = append(initErrors, "pass_total: "+err.Error())
		}

		e.edgesFitted, err = meter.Int64Counter("funnel_edges_fitted_total",
			metric.WithDescription("Edges that received a lag fit"),
		)
		if err != nil {
			initErrors = append(initErrors, "edges_fitted: "+err.Error())
		}

		e.edgesNoFit, err = meter.Int64Counter("funnel_edges_nofit_total",
			metric.WithDescription("Edges without a usable lag fit"),
		)
		if err != nil {
			initErrors = append(initErrors, "edges_nofit: "+err.Error())
		}

		e.edgesDegraded, err = meter.Int64Counter("funnel_edges_degraded_total",
			metric.WithDescription("Edges whose authoritative horizon was unsatisfiable"),
		)
		if err != nil {
			initErrors = append(initErrors, "edges_degraded: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Warn("metrics partially initialized",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// validateSnapshot rejects structurally unusable inputs before any pass
// state is entered.
func (e *Engine) validateSnapshot(snap *Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if snap.Graph == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidSnapshot)
	}
	if !snap.Graph.IsFrozen() {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, topology.ErrGraphNotFrozen)
	}
	if err := snap.Scope.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	node, ok := snap.Graph.Node(snap.Anchor)
	if !ok {
		return &topology.NodeError{NodeID: snap.Anchor, Err: topology.ErrNodeNotFound}
	}
	if !node.IsAnchor {
		return &topology.NodeError{NodeID: snap.Anchor, Err: topology.ErrNotAnchor}
	}

	for key, h := range snap.Horizons {
		if h <= 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot,
				&topology.EdgeError{Key: key, Err: lag.ErrInvalidHorizon})
		}
		if _, ok := snap.Graph.EdgeByKey(key); !ok {
			return fmt.Errorf("%w: horizon for unknown edge %s", ErrInvalidSnapshot, key)
		}
	}
	return nil
}

// Run executes one enhancement pass over the snapshot.
//
// Description:
//
//	The pass walks the staged pipeline: fitting, constraining, horizon
//	propagation, population propagation, blending. Stages run over a
//	deterministic edge order, so equal snapshots produce equal results
//	(up to pass identity and timing). A stage failure discards the pass
//	and surfaces a *StageError.
//
// Inputs:
//   - ctx: cancellation context, checked at stage boundaries.
//   - snap: the immutable pass inputs.
//
// Outputs:
//   - *Result: the computed per-edge statistics. Nil on error.
//   - error: ErrNilContext, ErrNilSnapshot, ErrInvalidSnapshot, a
//     *topology.NodeError for a bad anchor, or a *StageError.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Run(ctx context.Context, snap *Snapshot) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := e.validateSnapshot(snap); err != nil {
		return nil, err
	}

	e.initMetrics()

	key := CacheKey{
		ScopeKey:     snap.Scope.Key(),
		ScenarioKey:  snap.Scenario.Key(),
		GraphVersion: snap.Graph.Version(),
	}
	passID := uuid.NewString()[:12] // 48 bits of entropy

	ctx, span := tracer.Start(ctx, "funnel.Pass",
		trace.WithAttributes(
			attribute.String("funnel.pass_id", passID),
			attribute.String("funnel.graph_version", key.GraphVersion),
			attribute.String("funnel.scenario", key.ScenarioKey),
			attribute.String("funnel.scope", key.ScopeKey),
			attribute.Int("funnel.node_count", snap.Graph.NodeCount()),
			attribute.Int("funnel.edge_count", snap.Graph.EdgeCount()),
		),
	)
	defer span.End()

	start := time.Now()
	e.logger.Info("pass started",
		slog.String("pass_id", passID),
		slog.String("graph_version", key.GraphVersion),
		slog.String("scenario", key.ScenarioKey),
		slog.String("scope", key.ScopeKey),
		slog.Int("edges", snap.Graph.EdgeCount()),
	)

	run, err := newPassRun(snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p := &pass{id: passID, state: StateIdle}
	stages := []struct {
		to State
		fn func(context.Context, *passRun) error
	}{
		{StateFitting, e.stageFit},
		{StateConstraining, e.stageConstrain},
		{StatePropagatingHorizons, e.stageHorizons},
		{StatePropagatingPopulation, e.stagePopulation},
		{StateBlending, e.stageBlend},
	}
	for _, s := range stages {
		if err := e.runStage(ctx, p, s.to, run, s.fn); err != nil {
			duration := time.Since(start)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.recordPass(ctx, duration, false)
			e.logger.Error("pass failed",
				slog.String("pass_id", passID),
				slog.String("stage", s.to.String()),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
	}
	if err := p.advance(StateDone); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StageError{Stage: StateDone, Err: err}
	}

	duration := time.Since(start)
	result := e.buildResult(run, key, passID, duration)

	var fitted, noFit, degraded int64
	for _, ek := range run.order {
		st := run.states[ek]
		if st.hasFit {
			fitted++
		} else {
			noFit++
		}
		if st.degraded {
			degraded++
		}
	}
	e.recordPass(ctx, duration, true)
	e.recordEdges(ctx, fitted, noFit, degraded)

	span.SetAttributes(
		attribute.Int64("funnel.edges_fitted", fitted),
		attribute.Int64("funnel.edges_degraded", degraded),
	)
	span.SetStatus(codes.Ok, "")
	e.logger.Info("pass completed",
		slog.String("pass_id", passID),
		slog.Duration("duration", duration),
		slog.Int64("edges_fitted", fitted),
		slog.Int64("edges_nofit", noFit),
		slog.Int64("edges_degraded", degraded),
	)
	return result, nil
}

// runStage advances the pass to the given stage and executes it under its
// own span. Cancellation is honored at the stage boundary.
func (e *Engine) runStage(ctx context.Context, p *pass, to State, run *passRun, fn func(context.Context, *passRun) error) error {
	if err := ctx.Err(); err != nil {
		p.fail()
		return &StageError{Stage: to, Err: err}
	}
	if err := p.advance(to); err != nil {
		return &StageError{Stage: to, Err: err}
	}
	e.logger.Debug("stage started",
		slog.String("pass_id", p.id),
		slog.String("stage", to.String()),
	)

	ctx, span := tracer.Start(ctx, "funnel."+to.String())
	defer span.End()

	if err := fn(ctx, run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.fail()
		return &StageError{Stage: to, Err: err}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// recordPass records pass-level metrics.
func (e *Engine) recordPass(ctx context.Context, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	if e.passLatency != nil {
		e.passLatency.Record(ctx, duration.Seconds(), attrs)
	}
	if e.passTotal != nil {
		e.passTotal.Add(ctx, 1, attrs)
	}
}

// recordEdges records per-pass edge outcome counters.
func (e *Engine) recordEdges(ctx context.Context, fitted, noFit, degraded int64) {
	if e.edgesFitted != nil {
		e.edgesFitted.Add(ctx, fitted)
	}
	if e.edgesNoFit != nil {
		e.edgesNoFit.Add(ctx, noFit)
	}
	if e.edgesDegraded != nil {
		e.edgesDegraded.Add(ctx, degraded)
	}
}

// buildResult materializes the immutable result from the pass working set.
func (e *Engine) buildResult(run *passRun, key CacheKey, passID string, duration time.Duration) *Result {
	edges := make(map[topology.EdgeKey]*EdgeStats, len(run.order))
	order := append([]topology.EdgeKey(nil), run.order...)

	for _, k := range run.order {
		st := run.states[k]
		es := &EdgeStats{
			Key:          k,
			ObservedN:    st.agg.N,
			ObservedK:    st.agg.K,
			PMean:        st.pMean,
			PN:           st.pn,
			Completeness: st.completeness,
			PathT95:      st.pathT95,
			HasPathT95:   st.hasPathT95,
			LagStdevDays: st.lagStdev,
			HasLagStdev:  st.hasLagStdev,
			NoFit:        !st.hasFit,
			Degraded:     st.degraded,
			Active:       st.active,
			effectiveP:   st.effectiveP,
			forecastK:    st.forecastK,
			fit:          st.fit,
			hasFit:       st.hasFit,
		}
		if st.hasFit {
			es.T95 = st.fit.T95()
		}
		edges[k] = es
	}

	return &Result{
		Key:        key,
		PassID:     passID,
		AnchorID:   run.snap.Anchor,
		ComputedAt: time.Now(),
		Duration:   duration,
		edges:      edges,
		order:      order,
		solver:     e.cfg.Solver,
	}
}
