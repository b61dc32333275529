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
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context is nil")

	// ErrNilSnapshot indicates Run was called without a snapshot.
	ErrNilSnapshot = errors.New("snapshot is nil")

	// ErrInvalidSnapshot indicates the snapshot failed validation before
	// any pass state was entered.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidTransition indicates a pass state transition that the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEdgeNotFound indicates a result lookup for an edge the pass did
	// not compute.
	ErrEdgeNotFound = errors.New("edge not found in result")
)

// StageError reports a failure inside one pass stage. The pass transitions
// to StateError and the partial results are discarded.
type StageError struct {
	// Stage is the pipeline stage that failed.
	Stage State

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}
