// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine computes statistical enhancement passes over conversion
// graphs: per-edge lag fits, horizon-constrained maturity, forecast
// population flow, and completeness-blended transition probabilities.
//
// # Architecture
//
// One Run is one pass over a frozen snapshot, staged as a strict pipeline:
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                          ENHANCEMENT PASS                            │
//	├──────────────────────────────────────────────────────────────────────┤
//	│                                                                      │
//	│  Snapshot ──► Fitting ──► Constraining ──► Propagating ──► Blending  │
//	│  • graph      • scoped     • scenario       • path t95     • p.mean  │
//	│  • evidence     pooling      activity       • population             │
//	│  • scenario   • delayed    • horizon          forecast               │
//	│  • scope        lognormal    floors                                  │
//	│  • horizons     fits       • completeness        │                   │
//	│                            • effective p         ▼                   │
//	│                                               Result                 │
//	│                                              (immutable)             │
//	│                                                                      │
//	└──────────────────────────────────────────────────────────────────────┘
//
// Both propagation stages walk the graph in one shared topological order:
// horizons accumulate the slowest-path 95th percentile lag from the anchor,
// population accumulates expected converters edge to edge.
//
// # Components
//
//   - Engine: stateless pass executor; safe for concurrent passes
//   - Snapshot: the complete immutable inputs of one pass
//   - Result: immutable per-edge statistics, cacheable by construction
//   - ResultCache: LRU memoization with singleflight coalescing
//   - BlendStrategy: pluggable observed/forecast combination
//
// # Usage
//
// A single pass:
//
//	eng := engine.New(engine.Config{Logger: logger})
//	result, err := eng.Run(ctx, &engine.Snapshot{
//	    Graph:    graph,
//	    Evidence: evidence,
//	    Scope:    scope,
//	    Anchor:   "signup",
//	})
//	if err != nil {
//	    // a *StageError names the failed stage
//	}
//	for _, edge := range result.Edges() {
//	    // edge.PMean, edge.Completeness, edge.PathT95, ...
//	}
//
// Scenario fan-out and caching:
//
//	cache := engine.NewResultCache(eng, 512)
//	result, err := cache.Run(ctx, snap)
//
//	results, err := eng.RunMany(ctx, snap, scenarios)
//
// # Determinism
//
// Stages iterate edges in sorted key order and nodes in a deterministic
// topological order, so equal snapshots yield equal statistics. Pass
// identity (PassID, timestamps) is the only varying output.
//
// # Thread Safety
//
// Engine, Result, and ResultCache are safe for concurrent use. Snapshots
// must not be mutated while a pass reads them.
package engine
