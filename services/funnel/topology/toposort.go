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

import "sort"

// topoSort computes a deterministic topological node order via Kahn's
// algorithm. Ready nodes are consumed in lexicographic ID order so repeated
// freezes of the same topology yield the same order.
//
// Returns a *CycleError naming an offending cycle path when the edge set is
// not acyclic.
func (g *Graph) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, e := range g.edges {
		indegree[e.To]++
	}

	ready := make([]string, 0, len(g.nodes))
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		freed := make([]string, 0, len(g.outgoing[id]))
		for _, e := range g.outgoing[id] {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				freed = append(freed, e.To)
			}
		}
		if len(freed) > 0 {
			ready = append(ready, freed...)
			sort.Strings(ready)
		}
	}

	if len(order) < len(g.nodes) {
		// Nodes remain with positive indegree, so a cycle exists among
		// them. Walk it for the error message.
		return nil, NewCycleError(g.findCycle(indegree))
	}
	return order, nil
}

// findCycle locates one directed cycle among the nodes Kahn's algorithm
// could not order. remaining holds post-elimination indegrees; every node
// with a positive count sits on or downstream of a cycle.
func (g *Graph) findCycle(remaining map[string]int) []string {
	inCycle := make(map[string]bool, len(remaining))
	var candidates []string
	for id, d := range remaining {
		if d > 0 {
			inCycle[id] = true
			candidates = append(candidates, id)
		}
	}
	sort.Strings(candidates)

	// DFS restricted to the remaining nodes; the first back edge closes a
	// cycle and the recursion stack yields its path.
	state := make(map[string]int, len(inCycle)) // 0 unvisited, 1 on stack, 2 done
	var stack []string

	var walk func(id string) []string
	walk = func(id string) []string {
		state[id] = 1
		stack = append(stack, id)

		for _, e := range g.outgoing[id] {
			if !inCycle[e.To] {
				continue
			}
			switch state[e.To] {
			case 1:
				// Slice the stack from the first occurrence and close the loop.
				for i, s := range stack {
					if s == e.To {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, e.To)
					}
				}
			case 0:
				if found := walk(e.To); found != nil {
					return found
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = 2
		return nil
	}

	for _, id := range candidates {
		if state[id] == 0 {
			if found := walk(id); found != nil {
				return found
			}
		}
	}
	return candidates // unreachable for a well-formed remainder
}
