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
	"sort"
	"strings"
)

// Scenario is a resolved case-override set: which case-state labels are
// active and which edges are forced inactive.
//
// Case labels are opaque strings, already resolved by the caller from
// whatever override syntax produced them; this package matches them verbatim
// against edge ConditionalP entries and never interprets their structure.
//
// A nil *Scenario means baseline: no case selections, no exclusions.
//
// Thread Safety: a Scenario is read-only once handed to the engine; callers
// must not mutate it during a pass.
type Scenario struct {
	// Name labels the scenario in logs and cache keys.
	Name string

	// Cases is the set of active case-state labels.
	Cases map[string]bool

	// Excluded is the set of edges forced inactive. An excluded edge's
	// probability is zero and it carries neither population nor maturity.
	Excluded map[EdgeKey]bool
}

// EdgeActive reports whether an edge participates under this scenario.
// Every edge is active under the baseline (nil) scenario.
func (s *Scenario) EdgeActive(key EdgeKey) bool {
	if s == nil {
		return true
	}
	return !s.Excluded[key]
}

// SelectP resolves an edge's conditional probability under this scenario.
//
// The edge's ConditionalP list is ordered; the first entry whose case label
// is active wins. Returns (0, false) when the scenario selects nothing for
// the edge (no list, no active case, or nil scenario).
func (s *Scenario) SelectP(e *Edge) (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, cp := range e.ConditionalP {
		if s.Cases[cp.Case] {
			return cp.P, true
		}
	}
	return 0, false
}

// Key returns a deterministic string identifying the scenario's content,
// used for result cache and staleness keys. The baseline (nil) scenario has
// the key "baseline".
func (s *Scenario) Key() string {
	if s == nil {
		return "baseline"
	}

	cases := make([]string, 0, len(s.Cases))
	for c, on := range s.Cases {
		if on {
			cases = append(cases, c)
		}
	}
	sort.Strings(cases)

	excluded := make([]string, 0, len(s.Excluded))
	for k, on := range s.Excluded {
		if on {
			excluded = append(excluded, k.String())
		}
	}
	sort.Strings(excluded)

	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString("|cases:")
	b.WriteString(strings.Join(cases, ","))
	b.WriteString("|excluded:")
	b.WriteString(strings.Join(excluded, ","))
	return b.String()
}
