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
	"sort"
	"time"

	"github.com/google/uuid"
)

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	// Default: 10,000
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	// Default: 100,000
	MaxEdges int
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// Graph is a directed conversion graph.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. It is designed
//	for single-writer access during build, then read-only after Freeze().
//	After Freeze() returns, the graph can be safely read from multiple
//	goroutines, but no further modifications are allowed.
//
// Lifecycle:
//
//  1. Create with NewGraph()
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to validate (acyclicity included) and finalize
//  4. Query with Node(), Edge(), TopoOrder(), etc.
type Graph struct {
	// nodes maps node ID to Node. Unexported to prevent direct access.
	nodes map[string]*Node

	// edges maps edge key to Edge.
	edges map[EdgeKey]*Edge

	// outgoing and incoming are adjacency lists, sorted deterministically
	// at Freeze().
	outgoing map[string][]*Edge
	incoming map[string][]*Edge

	// topoOrder is the topological node order, computed at Freeze().
	topoOrder []string

	// version identifies this frozen graph instance for cache keys.
	// Empty until Freeze().
	version string

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was
	// called. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty conversion graph.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls. The graph must be frozen with Freeze() before the
//	engine can consume it.
//
// Inputs:
//   - opts: optional configuration options.
//
// Example:
//
//	g := topology.NewGraph()
//	g.AddNode(topology.Node{ID: "signup", IsAnchor: true})
//	g.AddNode(topology.Node{ID: "activate"})
//	g.AddEdge(topology.Edge{From: "signup", To: "activate"})
//	if err := g.Freeze(); err != nil {
//	    // cycle or validation failure
//	}
func NewGraph(opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[EdgeKey]*Edge),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
		state:    GraphStateBuilding,
		options:  options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// AddNode adds a node to the graph.
//
// Outputs:
//   - error: ErrGraphFrozen after Freeze(), ErrInvalidNode for an empty ID,
//     ErrDuplicateNode for a repeated ID, ErrMaxNodesExceeded at capacity.
func (g *Graph) AddNode(n Node) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if n.ID == "" {
		return fmt.Errorf("%w: empty node ID", ErrInvalidNode)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return &NodeError{NodeID: n.ID, Err: ErrDuplicateNode}
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return fmt.Errorf("%w: limit %d", ErrMaxNodesExceeded, g.options.MaxNodes)
	}

	stored := n
	g.nodes[n.ID] = &stored
	return nil
}

// AddEdge adds a directed edge to the graph. Both endpoints must already
// exist; a dangling reference is rejected here rather than discovered
// mid-computation.
//
// Outputs:
//   - error: ErrGraphFrozen after Freeze(), ErrNodeNotFound for a missing
//     endpoint, ErrInvalidEdge for a self loop or probability outside [0, 1],
//     ErrDuplicateEdge for a repeated ordered pair, ErrMaxEdgesExceeded at
//     capacity.
func (g *Graph) AddEdge(e Edge) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if e.From == e.To {
		return &EdgeError{Key: e.Key(), Err: fmt.Errorf("%w: self loop", ErrInvalidEdge)}
	}
	if _, ok := g.nodes[e.From]; !ok {
		return &NodeError{NodeID: e.From, Err: ErrNodeNotFound}
	}
	if _, ok := g.nodes[e.To]; !ok {
		return &NodeError{NodeID: e.To, Err: ErrNodeNotFound}
	}
	if e.HasBaselineP && (e.BaselineP < 0 || e.BaselineP > 1) {
		return &EdgeError{Key: e.Key(), Err: fmt.Errorf("%w: baseline probability %.4f outside [0, 1]",
			ErrInvalidEdge, e.BaselineP)}
	}
	for _, cp := range e.ConditionalP {
		if cp.P < 0 || cp.P > 1 {
			return &EdgeError{Key: e.Key(), Err: fmt.Errorf("%w: conditional probability %.4f outside [0, 1] for case %q",
				ErrInvalidEdge, cp.P, cp.Case)}
		}
	}
	key := e.Key()
	if _, exists := g.edges[key]; exists {
		return &EdgeError{Key: key, Err: ErrDuplicateEdge}
	}
	if len(g.edges) >= g.options.MaxEdges {
		return fmt.Errorf("%w: limit %d", ErrMaxEdgesExceeded, g.options.MaxEdges)
	}

	stored := e
	g.edges[key] = &stored
	g.outgoing[e.From] = append(g.outgoing[e.From], &stored)
	g.incoming[e.To] = append(g.incoming[e.To], &stored)
	return nil
}

// Freeze validates the graph and transitions it to read-only mode.
//
// Description:
//
//	Validation requires at least one node and an acyclic edge set; a cycle
//	aborts the freeze with a CycleError naming the offending path. On
//	success the topological order is computed and cached, adjacency lists
//	are sorted for deterministic iteration, and the graph receives a fresh
//	version string for cache keying. The operation is irreversible.
//
// Outputs:
//   - error: ErrEmptyGraph, ErrGraphFrozen on a second call, or a
//     *CycleError (unwrapping to ErrCycleDetected).
func (g *Graph) Freeze() error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	if len(g.nodes) == 0 {
		return ErrEmptyGraph
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.topoOrder = order

	for id := range g.outgoing {
		sort.Slice(g.outgoing[id], func(i, j int) bool {
			return g.outgoing[id][i].To < g.outgoing[id][j].To
		})
	}
	for id := range g.incoming {
		sort.Slice(g.incoming[id], func(i, j int) bool {
			return g.incoming[id][i].From < g.incoming[id][j].From
		})
	}

	g.version = uuid.NewString()[:12]
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
	return nil
}

// Version returns the version string assigned at Freeze(). Empty while the
// graph is still building.
func (g *Graph) Version() string {
	return g.version
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge between the given ordered node pair.
func (g *Graph) Edge(from, to string) (*Edge, bool) {
	e, ok := g.edges[EdgeKey{From: from, To: to}]
	return e, ok
}

// EdgeByKey returns the edge with the given key.
func (g *Graph) EdgeByKey(key EdgeKey) (*Edge, bool) {
	e, ok := g.edges[key]
	return e, ok
}

// Edges returns all edges sorted by key for deterministic iteration.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Outgoing returns the edges leaving the given node. The returned slice is
// owned by the graph; callers must not modify it.
func (g *Graph) Outgoing(id string) []*Edge {
	return g.outgoing[id]
}

// Incoming returns the edges entering the given node. The returned slice is
// owned by the graph; callers must not modify it.
func (g *Graph) Incoming(id string) []*Edge {
	return g.incoming[id]
}

// Anchors returns the IDs of all anchor-flagged nodes, sorted.
func (g *Graph) Anchors() []string {
	var out []string
	for id, n := range g.nodes {
		if n.IsAnchor {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// TopoOrder returns the cached topological node order.
//
// Outputs:
//   - []string: node IDs in an order where every edge points forward. The
//     returned slice is owned by the graph; callers must not modify it.
//   - error: ErrGraphNotFrozen before Freeze().
func (g *Graph) TopoOrder() ([]string, error) {
	if g.state != GraphStateReadOnly {
		return nil, ErrGraphNotFrozen
	}
	return g.topoOrder, nil
}
