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

import "context"

// stageHorizons walks the graph in topological order and accumulates the
// worst-case (slowest path) cumulative 95th percentile lag from the anchor
// through each active edge.
//
// A node's horizon is the maximum over its inbound paths: a cohort is only
// as mature as its slowest feeding path, so taking anything less than the
// max would declare immature populations settled. Edges on no path from
// the anchor get no horizon at all rather than a misleading zero, and
// scenario-inactive edges carry no maturity.
func (e *Engine) stageHorizons(_ context.Context, run *passRun) error {
	g := run.snap.Graph
	anchor := run.snap.Anchor

	reached := make(map[string]bool, len(run.topo))
	horizon := make(map[string]float64, len(run.topo))
	reached[anchor] = true

	for _, id := range run.topo {
		if !reached[id] {
			continue
		}
		base := horizon[id]
		for _, edge := range g.Outgoing(id) {
			st := run.states[edge.Key()]
			if !st.active {
				continue
			}
			t95 := 0.0
			if st.hasFit {
				t95 = st.fit.T95()
			}
			st.pathT95 = base + t95
			st.hasPathT95 = true

			if !reached[edge.To] {
				reached[edge.To] = true
				horizon[edge.To] = st.pathT95
			} else if st.pathT95 > horizon[edge.To] {
				horizon[edge.To] = st.pathT95
			}
		}
	}
	return nil
}

// stagePopulation walks the graph in topological order and forecasts the
// population reaching each edge.
//
// Edges leaving the anchor read their own observed exposure; every other
// edge reads the summed expected converters of its inbound edges. The
// expected converter count of an edge is its population times its resolved
// transition probability; inactive edges pass nothing on.
func (e *Engine) stagePopulation(_ context.Context, run *passRun) error {
	g := run.snap.Graph
	anchor := run.snap.Anchor

	inflow := make(map[string]float64, len(run.topo))
	for _, id := range run.topo {
		for _, edge := range g.Outgoing(id) {
			st := run.states[edge.Key()]
			if id == anchor {
				st.pn = st.agg.N
			} else {
				st.pn = inflow[id]
			}
			if st.active {
				st.forecastK = st.pn * st.effectiveP
			}
			inflow[edge.To] += st.forecastK
		}
	}
	return nil
}
