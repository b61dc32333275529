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

// BlendStrategy combines an observed conversion rate with a forecast rate
// into the blended transition probability.
//
// Implementations must be pure functions of their inputs: the engine calls
// Blend once per edge per pass and expects identical inputs to yield
// identical outputs.
type BlendStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Blend combines the rates. observedRate is the raw in-scope K/N,
	// completeness the expected observed fraction in [0, 1], forecastRate
	// the resolved forward-looking transition probability.
	Blend(observedRate, completeness, forecastRate float64) float64
}

// CompletenessWeighted is the default blend: the observed rate weighted by
// how much of the eventual outcome is expected to be visible, the forecast
// filling the remainder.
//
// At completeness 1 the blend returns exactly the observed rate; at
// completeness 0 it returns exactly the forecast. A young cohort therefore
// leans on the forecast and hands over to the data as it matures.
type CompletenessWeighted struct{}

// Name identifies the strategy in logs.
func (CompletenessWeighted) Name() string { return "completeness_weighted" }

// Blend combines the rates, clamping completeness into [0, 1].
func (CompletenessWeighted) Blend(observedRate, completeness, forecastRate float64) float64 {
	c := completeness
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c*observedRate + (1-c)*forecastRate
}

// stageBlend produces the blended transition probability per edge.
//
// Fitted edges with evidence blend by completeness. Edges without a fit
// have no maturity model, so their observed rate is taken at face value;
// edges without evidence are pure forecast. A scenario-inactive edge is
// zero regardless of its evidence.
func (e *Engine) stageBlend(_ context.Context, run *passRun) error {
	for _, key := range run.order {
		st := run.states[key]
		if !st.active {
			st.pMean = 0
			continue
		}

		hasEvidence := st.agg.HasEvidence() && st.agg.N > 0
		switch {
		case !hasEvidence:
			st.pMean = st.effectiveP
		case !st.hasFit:
			st.pMean = st.agg.ObservedRate()
		default:
			st.pMean = e.cfg.Blend.Blend(st.agg.ObservedRate(), st.completeness, st.effectiveP)
		}
	}
	return nil
}
