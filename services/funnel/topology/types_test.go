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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/lagcast/services/funnel/lag"
)

func TestGraphState_String(t *testing.T) {
	assert.Equal(t, "building", GraphStateBuilding.String())
	assert.Equal(t, "readonly", GraphStateReadOnly.String())
	assert.Equal(t, "unknown", GraphState(42).String())
}

func TestEdgeKey_String(t *testing.T) {
	key := EdgeKey{From: "signup", To: "activate"}
	assert.Equal(t, "signup->activate", key.String())
}

func TestEdge_Key(t *testing.T) {
	edge := Edge{From: "signup", To: "activate", BaselineP: 0.5, HasBaselineP: true}
	assert.Equal(t, EdgeKey{From: "signup", To: "activate"}, edge.Key())
}

func TestSlice_HasCohortDate(t *testing.T) {
	var s Slice
	assert.False(t, s.HasCohortDate(), "zero cohort date should read as absent")

	s.CohortDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, s.HasCohortDate())
}

func TestSlice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		slice   Slice
		wantErr bool
	}{
		{
			name:  "counts only",
			slice: Slice{N: 100, K: 40},
		},
		{
			name:  "conversions equal exposure",
			slice: Slice{N: 100, K: 100},
		},
		{
			name:  "daily exposure stands in for missing total",
			slice: Slice{NDaily: []float64{60, 40}, K: 80},
		},
		{
			name:    "negative exposure",
			slice:   Slice{N: -1},
			wantErr: true,
		},
		{
			name:    "negative conversions",
			slice:   Slice{N: 10, K: -1},
			wantErr: true,
		},
		{
			name:    "negative daily exposure",
			slice:   Slice{NDaily: []float64{10, -5}, K: 0},
			wantErr: true,
		},
		{
			name:    "negative daily conversions",
			slice:   Slice{N: 10, KDaily: []float64{-1}},
			wantErr: true,
		},
		{
			name:    "conversions exceed exposure",
			slice:   Slice{N: 10, K: 11},
			wantErr: true,
		},
		{
			name:    "conversions exceed daily exposure",
			slice:   Slice{NDaily: []float64{5, 5}, K: 11},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.slice.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSlice)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlice_EvidenceIsImmutable(t *testing.T) {
	hist := &lag.Histogram{Counts: []float64{5, 3, 1}}
	slice := Slice{
		CohortDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		N:          100, K: 9,
		KDaily:    []float64{5, 3, 1},
		Histogram: hist,
	}

	es := NewEvidenceSet()
	key := EdgeKey{From: "signup", To: "activate"}
	require.NoError(t, es.Add(key, slice))

	scope := Scope{
		Kind: ScopeWindow,
		AsOf: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	agg := es.Aggregate(key, scope)
	require.True(t, agg.HasEvidence())

	assert.Equal(t, []float64{5, 3, 1}, hist.Counts, "aggregation must not touch caller-owned histograms")
	assert.Equal(t, []float64{5, 3, 1}, slice.KDaily, "aggregation must not touch caller-owned dailies")
}
