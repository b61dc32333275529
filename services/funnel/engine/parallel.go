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
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/lagcast/services/funnel/topology"
)

// ScenarioResult is the outcome of one scenario in a RunMany fan-out.
type ScenarioResult struct {
	// Scenario is the scenario this slot was computed under. Nil is the
	// baseline.
	Scenario *topology.Scenario

	// Result is the pass result. Nil when Err is non-nil.
	Result *Result

	// Err is the pass error, if any.
	Err error
}

// RunMany computes one pass per scenario over a shared snapshot.
//
// Description:
//
//	Scenarios are independent what-if questions over the same graph and
//	evidence, so they run concurrently, bounded by Config.MaxParallel.
//	One scenario failing does not abort its siblings: every slot is
//	always filled, and the combined error joins the individual failures.
//	The snapshot's own Scenario field is ignored; each slot substitutes
//	its own.
//
// Inputs:
//   - ctx: cancellation context, shared by all passes.
//   - snap: the shared inputs. Read-only throughout.
//   - scenarios: one entry per pass. A nil entry is the baseline.
//
// Outputs:
//   - []ScenarioResult: one slot per scenario, in input order.
//   - error: nil when every pass succeeded, else the joined failures.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) RunMany(ctx context.Context, snap *Snapshot, scenarios []*topology.Scenario) ([]ScenarioResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(scenarios) == 0 {
		return nil, nil
	}

	results := make([]ScenarioResult, len(scenarios))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	for i, scenario := range scenarios {
		i, scenario := i, scenario

		g.Go(func() error {
			shard := *snap
			shard.Scenario = scenario

			r, err := e.Run(gCtx, &shard)
			results[i] = ScenarioResult{Scenario: scenario, Result: r, Err: err}
			if err != nil {
				e.logger.Warn("scenario pass failed",
					slog.String("scenario", scenario.Key()),
					slog.String("error", err.Error()),
				)
			}
			// Scenario failures are isolated; siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	errs := make([]error, 0, len(results))
	for _, sr := range results {
		if sr.Err != nil {
			errs = append(errs, sr.Err)
		}
	}
	return results, errors.Join(errs...)
}
