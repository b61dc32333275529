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
	"errors"
	"testing"
)

// buildDiamond constructs and freezes the four-node diamond
// signup -> {trial, demo} -> activate.
func buildDiamond(t *testing.T) *Graph {
	t.Helper()

	g := NewGraph()
	for _, n := range []Node{
		{ID: "signup", IsAnchor: true},
		{ID: "trial"},
		{ID: "demo"},
		{ID: "activate", IsAbsorbing: true},
	} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range []Edge{
		{From: "signup", To: "trial"},
		{From: "signup", To: "demo"},
		{From: "trial", To: "activate"},
		{From: "demo", To: "activate"},
	} {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s): %v", e.Key(), err)
		}
	}
	if err := g.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return g
}

func TestGraph_Lifecycle(t *testing.T) {
	g := NewGraph()

	if g.State() != GraphStateBuilding {
		t.Errorf("new graph state = %s, want building", g.State())
	}
	if g.IsFrozen() {
		t.Error("new graph reports frozen")
	}
	if g.Version() != "" {
		t.Errorf("unfrozen graph has version %q", g.Version())
	}

	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}

	if g.State() != GraphStateReadOnly {
		t.Errorf("frozen graph state = %s, want readonly", g.State())
	}
	if !g.IsFrozen() {
		t.Error("frozen graph reports not frozen")
	}
	if g.Version() == "" {
		t.Error("frozen graph has empty version")
	}
	if g.BuiltAtMilli == 0 {
		t.Error("frozen graph has zero BuiltAtMilli")
	}

	t.Run("mutations rejected after freeze", func(t *testing.T) {
		if err := g.AddNode(Node{ID: "b"}); !errors.Is(err, ErrGraphFrozen) {
			t.Errorf("AddNode after freeze = %v, want ErrGraphFrozen", err)
		}
		if err := g.AddEdge(Edge{From: "a", To: "b"}); !errors.Is(err, ErrGraphFrozen) {
			t.Errorf("AddEdge after freeze = %v, want ErrGraphFrozen", err)
		}
		if err := g.Freeze(); !errors.Is(err, ErrGraphFrozen) {
			t.Errorf("second Freeze = %v, want ErrGraphFrozen", err)
		}
	})
}

func TestGraph_AddNode_Validation(t *testing.T) {
	t.Run("empty ID", func(t *testing.T) {
		g := NewGraph()
		if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNode) {
			t.Errorf("AddNode(empty) = %v, want ErrInvalidNode", err)
		}
	})

	t.Run("duplicate ID", func(t *testing.T) {
		g := NewGraph()
		if err := g.AddNode(Node{ID: "a"}); err != nil {
			t.Fatalf("first AddNode: %v", err)
		}
		err := g.AddNode(Node{ID: "a"})
		if !errors.Is(err, ErrDuplicateNode) {
			t.Errorf("duplicate AddNode = %v, want ErrDuplicateNode", err)
		}
		var nodeErr *NodeError
		if !errors.As(err, &nodeErr) {
			t.Fatalf("duplicate AddNode error type = %T, want *NodeError", err)
		}
		if nodeErr.NodeID != "a" {
			t.Errorf("NodeError.NodeID = %q, want %q", nodeErr.NodeID, "a")
		}
	})

	t.Run("node limit", func(t *testing.T) {
		g := NewGraph(WithMaxNodes(2))
		for _, id := range []string{"a", "b"} {
			if err := g.AddNode(Node{ID: id}); err != nil {
				t.Fatalf("AddNode(%s): %v", id, err)
			}
		}
		if err := g.AddNode(Node{ID: "c"}); !errors.Is(err, ErrMaxNodesExceeded) {
			t.Errorf("AddNode over limit = %v, want ErrMaxNodesExceeded", err)
		}
	})
}

func TestGraph_AddEdge_Validation(t *testing.T) {
	newPair := func(t *testing.T) *Graph {
		t.Helper()
		g := NewGraph()
		if err := g.AddNode(Node{ID: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(Node{ID: "b"}); err != nil {
			t.Fatal(err)
		}
		return g
	}

	t.Run("dangling endpoint", func(t *testing.T) {
		g := newPair(t)
		err := g.AddEdge(Edge{From: "a", To: "ghost"})
		if !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("dangling AddEdge = %v, want ErrNodeNotFound", err)
		}
		var nodeErr *NodeError
		if !errors.As(err, &nodeErr) || nodeErr.NodeID != "ghost" {
			t.Errorf("dangling AddEdge should name the missing node, got %v", err)
		}
	})

	t.Run("self loop", func(t *testing.T) {
		g := newPair(t)
		if err := g.AddEdge(Edge{From: "a", To: "a"}); !errors.Is(err, ErrInvalidEdge) {
			t.Errorf("self-loop AddEdge = %v, want ErrInvalidEdge", err)
		}
	})

	t.Run("baseline probability out of range", func(t *testing.T) {
		g := newPair(t)
		e := Edge{From: "a", To: "b", BaselineP: 1.2, HasBaselineP: true}
		if err := g.AddEdge(e); !errors.Is(err, ErrInvalidEdge) {
			t.Errorf("AddEdge(p=1.2) = %v, want ErrInvalidEdge", err)
		}
	})

	t.Run("conditional probability out of range", func(t *testing.T) {
		g := newPair(t)
		e := Edge{From: "a", To: "b", ConditionalP: []CaseProbability{{Case: "promo", P: -0.1}}}
		if err := g.AddEdge(e); !errors.Is(err, ErrInvalidEdge) {
			t.Errorf("AddEdge(p=-0.1) = %v, want ErrInvalidEdge", err)
		}
	})

	t.Run("duplicate edge", func(t *testing.T) {
		g := newPair(t)
		if err := g.AddEdge(Edge{From: "a", To: "b"}); err != nil {
			t.Fatalf("first AddEdge: %v", err)
		}
		err := g.AddEdge(Edge{From: "a", To: "b"})
		if !errors.Is(err, ErrDuplicateEdge) {
			t.Errorf("duplicate AddEdge = %v, want ErrDuplicateEdge", err)
		}
		var edgeErr *EdgeError
		if !errors.As(err, &edgeErr) || edgeErr.Key.String() != "a->b" {
			t.Errorf("duplicate AddEdge should name the edge, got %v", err)
		}
	})

	t.Run("edge limit", func(t *testing.T) {
		g := NewGraph(WithMaxEdges(1))
		for _, id := range []string{"a", "b", "c"} {
			if err := g.AddNode(Node{ID: id}); err != nil {
				t.Fatal(err)
			}
		}
		if err := g.AddEdge(Edge{From: "a", To: "b"}); err != nil {
			t.Fatalf("first AddEdge: %v", err)
		}
		if err := g.AddEdge(Edge{From: "b", To: "c"}); !errors.Is(err, ErrMaxEdgesExceeded) {
			t.Errorf("AddEdge over limit = %v, want ErrMaxEdgesExceeded", err)
		}
	})
}

func TestGraph_Freeze_Empty(t *testing.T) {
	g := NewGraph()
	if err := g.Freeze(); !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("Freeze(empty) = %v, want ErrEmptyGraph", err)
	}
}

func TestGraph_Freeze_CycleDetected(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		if err := g.AddNode(Node{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range []Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "a"},
	} {
		if err := g.AddEdge(e); err != nil {
			t.Fatal(err)
		}
	}

	err := g.Freeze()
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Freeze(cycle) = %v, want ErrCycleDetected", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Freeze(cycle) error type = %T, want *CycleError", err)
	}
	if len(cycleErr.Path) != 4 {
		t.Fatalf("cycle path length = %d (%v), want 4", len(cycleErr.Path), cycleErr.Path)
	}
	if cycleErr.Path[0] != cycleErr.Path[len(cycleErr.Path)-1] {
		t.Errorf("cycle path %v does not close on itself", cycleErr.Path)
	}
	seen := make(map[string]bool)
	for _, id := range cycleErr.Path {
		seen[id] = true
	}
	for _, id := range []string{"a", "b", "c"} {
		if !seen[id] {
			t.Errorf("cycle path %v missing node %s", cycleErr.Path, id)
		}
	}

	if g.IsFrozen() {
		t.Error("graph froze despite cycle")
	}
}

func TestGraph_TopoOrder(t *testing.T) {
	t.Run("rejected before freeze", func(t *testing.T) {
		g := NewGraph()
		if err := g.AddNode(Node{ID: "a"}); err != nil {
			t.Fatal(err)
		}
		if _, err := g.TopoOrder(); !errors.Is(err, ErrGraphNotFrozen) {
			t.Errorf("TopoOrder before freeze = %v, want ErrGraphNotFrozen", err)
		}
	})

	t.Run("every edge points forward", func(t *testing.T) {
		g := buildDiamond(t)
		order, err := g.TopoOrder()
		if err != nil {
			t.Fatalf("TopoOrder: %v", err)
		}
		if len(order) != g.NodeCount() {
			t.Fatalf("order length = %d, want %d", len(order), g.NodeCount())
		}
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, e := range g.Edges() {
			if pos[e.From] >= pos[e.To] {
				t.Errorf("edge %s points backward in order %v", e.Key(), order)
			}
		}
	})

	t.Run("deterministic across builds", func(t *testing.T) {
		want := []string{"signup", "demo", "trial", "activate"}
		for i := 0; i < 5; i++ {
			g := buildDiamond(t)
			order, err := g.TopoOrder()
			if err != nil {
				t.Fatalf("TopoOrder: %v", err)
			}
			for j, id := range want {
				if order[j] != id {
					t.Fatalf("build %d: order = %v, want %v", i, order, want)
				}
			}
		}
	})
}

func TestGraph_Queries(t *testing.T) {
	g := buildDiamond(t)

	t.Run("node lookup", func(t *testing.T) {
		n, ok := g.Node("signup")
		if !ok || !n.IsAnchor {
			t.Errorf("Node(signup) = %+v, %v; want anchor node", n, ok)
		}
		if _, ok := g.Node("ghost"); ok {
			t.Error("Node(ghost) found a node")
		}
	})

	t.Run("edge lookup", func(t *testing.T) {
		if _, ok := g.Edge("signup", "trial"); !ok {
			t.Error("Edge(signup, trial) not found")
		}
		if _, ok := g.EdgeByKey(EdgeKey{From: "trial", To: "activate"}); !ok {
			t.Error("EdgeByKey(trial->activate) not found")
		}
		if _, ok := g.Edge("trial", "signup"); ok {
			t.Error("Edge(trial, signup) found a reversed edge")
		}
	})

	t.Run("adjacency is sorted", func(t *testing.T) {
		out := g.Outgoing("signup")
		if len(out) != 2 || out[0].To != "demo" || out[1].To != "trial" {
			t.Errorf("Outgoing(signup) = %v, want [demo trial]", edgeTargets(out))
		}
		in := g.Incoming("activate")
		if len(in) != 2 || in[0].From != "demo" || in[1].From != "trial" {
			t.Errorf("Incoming(activate) unsorted")
		}
	})

	t.Run("edges are sorted by key", func(t *testing.T) {
		edges := g.Edges()
		if len(edges) != 4 {
			t.Fatalf("Edges() length = %d, want 4", len(edges))
		}
		for i := 1; i < len(edges); i++ {
			prev, cur := edges[i-1].Key(), edges[i].Key()
			if prev.From > cur.From || (prev.From == cur.From && prev.To > cur.To) {
				t.Errorf("Edges() unsorted at %d: %s before %s", i, prev, cur)
			}
		}
	})

	t.Run("anchors and counts", func(t *testing.T) {
		anchors := g.Anchors()
		if len(anchors) != 1 || anchors[0] != "signup" {
			t.Errorf("Anchors() = %v, want [signup]", anchors)
		}
		if g.NodeCount() != 4 || g.EdgeCount() != 4 {
			t.Errorf("counts = %d nodes, %d edges; want 4, 4", g.NodeCount(), g.EdgeCount())
		}
	})
}

func edgeTargets(edges []*Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.To
	}
	return out
}
