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

import "fmt"

// State is the lifecycle state of one enhancement pass.
//
// A pass moves strictly forward through the pipeline states; any stage
// failure moves it to StateError, which is terminal. Partial results are
// never surfaced from a failed pass.
type State int

const (
	// StateIdle is the initial state before any stage has run.
	StateIdle State = iota

	// StateFitting covers per-edge evidence aggregation and lag fitting.
	StateFitting

	// StateConstraining covers horizon enforcement and the per-edge
	// statistics derived from the enforced fits.
	StateConstraining

	// StatePropagatingHorizons covers the path-maturity walk.
	StatePropagatingHorizons

	// StatePropagatingPopulation covers the population forecast walk.
	StatePropagatingPopulation

	// StateBlending covers observed/forecast blending.
	StateBlending

	// StateDone is the terminal success state.
	StateDone

	// StateError is the terminal failure state.
	StateError
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFitting:
		return "fitting"
	case StateConstraining:
		return "constraining"
	case StatePropagatingHorizons:
		return "propagating_horizons"
	case StatePropagatingPopulation:
		return "propagating_population"
	case StateBlending:
		return "blending"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// successor maps each state to its single legal successor on the success path.
var successor = map[State]State{
	StateIdle:                  StateFitting,
	StateFitting:               StateConstraining,
	StateConstraining:          StatePropagatingHorizons,
	StatePropagatingHorizons:   StatePropagatingPopulation,
	StatePropagatingPopulation: StateBlending,
	StateBlending:              StateDone,
}

// pass tracks the lifecycle of one engine invocation.
type pass struct {
	id    string
	state State
}

// advance moves the pass to the given state.
//
// Only the single forward transition of the pipeline and the universal
// transition to StateError are legal. Anything else leaves the pass in
// StateError and reports ErrInvalidTransition, since a pass that skipped a
// stage cannot be trusted.
func (p *pass) advance(to State) error {
	if to == StateError {
		p.state = StateError
		return nil
	}
	if p.state == StateDone || p.state == StateError {
		err := fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, p.state)
		p.state = StateError
		return err
	}
	if successor[p.state] != to {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, to)
		p.state = StateError
		return err
	}
	p.state = to
	return nil
}

// fail moves the pass to the terminal error state.
func (p *pass) fail() {
	p.state = StateError
}
