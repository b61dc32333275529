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
	"math"
	"math/rand"
	"testing"

	"github.com/AleutianAI/lagcast/services/funnel/topology"
)

// randomSlice builds a consistent evidence slice with a random lag profile.
func randomSlice(rng *rand.Rand) topology.Slice {
	bins := 1 + rng.Intn(4)
	kDaily := make([]float64, bins)
	var total float64
	for i := range kDaily {
		kDaily[i] = float64(1 + rng.Intn(40))
		total += kDaily[i]
	}
	return topology.Slice{
		CohortDate: day(2025, 6, 1).AddDate(0, 0, rng.Intn(25)),
		N:          total + float64(rng.Intn(400)),
		K:          total,
		KDaily:     kDaily,
	}
}

// randomLayeredSnapshot builds a random four-layer DAG. Consecutive layers
// are always connected; individual nodes may still be unreachable, which
// exercises the no-path cases.
func randomLayeredSnapshot(t *testing.T, rng *rand.Rand) *Snapshot {
	t.Helper()

	g := topology.NewGraph()
	layers := make([][]string, 4)
	id := 0
	for l := range layers {
		width := 1
		if l > 0 {
			width = 1 + rng.Intn(3)
		}
		for w := 0; w < width; w++ {
			name := fmt.Sprintf("n%02d", id)
			id++
			if err := g.AddNode(topology.Node{ID: name, IsAnchor: l == 0}); err != nil {
				t.Fatalf("AddNode: %v", err)
			}
			layers[l] = append(layers[l], name)
		}
	}

	ev := topology.NewEvidenceSet()
	addEdge := func(from, to string, withEvidence bool) {
		edge := topology.Edge{From: from, To: to}
		if rng.Float64() < 0.8 {
			edge.BaselineP = 0.2 + 0.6*rng.Float64()
			edge.HasBaselineP = true
		}
		if err := g.AddEdge(edge); err != nil {
			t.Fatalf("AddEdge(%s->%s): %v", from, to, err)
		}
		if withEvidence {
			if err := ev.Add(edge.Key(), randomSlice(rng)); err != nil {
				t.Fatalf("Add evidence: %v", err)
			}
		}
	}

	for l := 0; l+1 < len(layers); l++ {
		added := 0
		for _, from := range layers[l] {
			for _, to := range layers[l+1] {
				if rng.Float64() < 0.6 {
					addEdge(from, to, l == 0 || rng.Float64() < 0.3)
					added++
				}
			}
		}
		if added == 0 {
			addEdge(layers[l][0], layers[l+1][0], l == 0)
		}
	}
	if err := g.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}

	return &Snapshot{
		Graph:    g,
		Evidence: ev,
		Scope: topology.Scope{
			Kind: topology.ScopeWindow,
			AsOf: day(2025, 7, 10),
			From: day(2025, 6, 1),
			To:   day(2025, 7, 1),
		},
		Anchor: layers[0][0],
	}
}

// TestEngine_Run_RandomDAGProperties checks the structural guarantees that
// must hold on any input: path maturity never shrinks along a path, and
// population is conserved through every interior node.
func TestEngine_Run_RandomDAGProperties(t *testing.T) {
	eng := New(Config{Logger: quietLogger()})
	ctx := context.Background()

	for seed := int64(1); seed <= 12; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			snap := randomLayeredSnapshot(t, rng)

			res, err := eng.Run(ctx, snap)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			g := snap.Graph

			for _, st := range res.Edges() {
				if st.PMean < 0 || st.PMean > 1 {
					t.Errorf("edge %s PMean = %v out of [0,1]", st.Key, st.PMean)
				}
				if st.Completeness < 0 || st.Completeness > 1 {
					t.Errorf("edge %s completeness = %v out of [0,1]", st.Key, st.Completeness)
				}
				if st.PN < 0 || st.forecastK < 0 {
					t.Errorf("edge %s negative population: PN=%v forecast=%v", st.Key, st.PN, st.forecastK)
				}

				if !st.HasPathT95 {
					continue
				}
				for _, in := range g.Incoming(st.Key.From) {
					inStats, ok := res.Edge(in.Key())
					if !ok || !inStats.HasPathT95 {
						continue
					}
					if st.PathT95 < inStats.PathT95-1e-9 {
						t.Errorf("maturity shrank along %s then %s: %v < %v",
							in.Key(), st.Key, st.PathT95, inStats.PathT95)
					}
				}
			}

			order, err := g.TopoOrder()
			if err != nil {
				t.Fatalf("TopoOrder: %v", err)
			}
			for _, id := range order {
				if id == snap.Anchor {
					continue
				}
				var inbound float64
				for _, in := range g.Incoming(id) {
					inStats, ok := res.Edge(in.Key())
					if !ok {
						t.Fatalf("missing stats for %s", in.Key())
					}
					inbound += inStats.forecastK
				}
				for _, out := range g.Outgoing(id) {
					outStats, ok := res.Edge(out.Key())
					if !ok {
						t.Fatalf("missing stats for %s", out.Key())
					}
					if math.Abs(outStats.PN-inbound) > 1e-9 {
						t.Errorf("population not conserved at %s: edge %s PN = %v, inbound forecast = %v",
							id, out.Key(), outStats.PN, inbound)
					}
				}
			}
		})
	}
}
