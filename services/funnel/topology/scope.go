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
	"time"
)

// ScopeKind selects how a query scope picks evidence slices.
type ScopeKind int

const (
	// ScopeWindow selects slices whose cohort date falls in [From, To).
	// Slices without a cohort date are included.
	ScopeWindow ScopeKind = iota

	// ScopeCohort selects slices of exactly one cohort date. Slices without
	// a cohort date are excluded.
	ScopeCohort
)

// String returns the string representation of the ScopeKind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeWindow:
		return "window"
	case ScopeCohort:
		return "cohort"
	default:
		return "unknown"
	}
}

// Scope is the explicit query scope of one engine invocation: which evidence
// slices participate and how cohort ages are measured.
//
// Every computation takes its scope as an explicit parameter. There is no
// ambient or global scope; two components reading different notions of "the
// current query" is a correctness bug this type exists to prevent.
type Scope struct {
	// Kind selects window or single-cohort scoping.
	Kind ScopeKind

	// AsOf is the observation instant. Cohort ages are measured from the
	// cohort date to AsOf.
	AsOf time.Time

	// From and To bound a window scope: cohort dates in [From, To).
	From time.Time
	To   time.Time

	// Cohort is the single cohort date of a cohort scope.
	Cohort time.Time
}

// Validate checks the scope for internal consistency.
func (s Scope) Validate() error {
	if s.AsOf.IsZero() {
		return fmt.Errorf("%w: missing AsOf", ErrInvalidScope)
	}
	switch s.Kind {
	case ScopeWindow:
		if s.From.IsZero() || s.To.IsZero() {
			return fmt.Errorf("%w: window scope requires From and To", ErrInvalidScope)
		}
		if !s.From.Before(s.To) {
			return fmt.Errorf("%w: window From %s not before To %s",
				ErrInvalidScope, s.From.Format(dateLayout), s.To.Format(dateLayout))
		}
	case ScopeCohort:
		if s.Cohort.IsZero() {
			return fmt.Errorf("%w: cohort scope requires Cohort", ErrInvalidScope)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidScope, s.Kind)
	}
	return nil
}

// Contains reports whether a slice belongs to this scope.
//
// Window scopes admit slices with a cohort date in [From, To), plus slices
// without a cohort date (there is nothing to exclude them on). Cohort scopes
// admit only slices dated exactly on the scope's cohort day.
func (s Scope) Contains(sl *Slice) bool {
	switch s.Kind {
	case ScopeWindow:
		if !sl.HasCohortDate() {
			return true
		}
		return !sl.CohortDate.Before(s.From) && sl.CohortDate.Before(s.To)
	case ScopeCohort:
		return sl.HasCohortDate() && sameDay(sl.CohortDate, s.Cohort)
	default:
		return false
	}
}

// AgeDays returns the age of a slice's cohort at the scope's observation
// instant, in days.
//
// A slice without a cohort date is given the youngest age the scope allows
// (measured from the window's To bound), which is the conservative choice:
// the younger the cohort, the lower its completeness.
func (s Scope) AgeDays(sl *Slice) float64 {
	ref := sl.CohortDate
	if !sl.HasCohortDate() {
		if s.Kind == ScopeCohort {
			ref = s.Cohort
		} else {
			ref = s.To
		}
	}
	age := s.AsOf.Sub(ref).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// Key returns a deterministic string identifying the scope, used for result
// cache and staleness keys.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeWindow:
		return fmt.Sprintf("window:%s:%s:asof:%s",
			s.From.Format(dateLayout), s.To.Format(dateLayout), s.AsOf.Format(dateLayout))
	case ScopeCohort:
		return fmt.Sprintf("cohort:%s:asof:%s",
			s.Cohort.Format(dateLayout), s.AsOf.Format(dateLayout))
	default:
		return "unknown"
	}
}

const dateLayout = "2006-01-02"

// sameDay reports whether two instants fall on the same calendar day in UTC.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
