// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package topology provides the data model of the conversion funnel: the
// directed acyclic graph of conversion steps, scenario case overrides,
// observed evidence slices, and the explicit query scope.
//
// # Graph lifecycle
//
// A Graph is built with AddNode/AddEdge and then frozen. Freeze() validates
// the topology (a cycle is a fatal input error reported with its offending
// path), caches a deterministic topological order, and assigns a version
// string used in result cache keys. After Freeze() the graph is immutable
// and safe for concurrent reads.
//
// # Evidence and scoping
//
// Evidence arrives as immutable per-edge Slices, already fetched by an
// external collaborator. A Scope (window or single cohort, plus the
// observation instant) selects which slices a computation may see;
// EvidenceSet.Aggregate pools exactly the in-scope slices into the counts
// and central lag statistics the engine consumes. The scope is always an
// explicit parameter, never ambient state.
//
// # Scenarios
//
// A Scenario activates case-state labels and excludes edges. Labels are
// opaque: they were resolved from override syntax by the caller, and this
// package only matches them verbatim against each edge's ordered
// ConditionalP list (first active entry wins).
package topology
