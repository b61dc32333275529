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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for topology operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrGraphNotFrozen is returned when querying a graph that has not been
	// frozen yet. Topological order and version exist only after Freeze().
	ErrGraphNotFrozen = errors.New("graph is not frozen")

	// ErrEmptyGraph is returned when freezing a graph with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNodeNotFound is returned when an edge references a node that was
	// never added. Both endpoints must exist before an edge can be created.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose ID already
	// exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrDuplicateEdge is returned when adding a second edge between the
	// same ordered node pair.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidNode is returned for a node that fails validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned for an edge that fails validation
	// (self loop, probability outside [0, 1]).
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrCycleDetected is returned when the graph contains a directed
	// cycle. Conversion graphs must be acyclic; a cycle is a fatal input
	// error, never silently handled.
	ErrCycleDetected = errors.New("cycle detected in conversion graph")

	// ErrNotAnchor is returned when a query names an anchor node that is
	// not flagged as an anchor.
	ErrNotAnchor = errors.New("node is not an anchor")

	// ErrInvalidSlice is returned for an evidence slice that fails
	// validation (negative counts, conversions exceeding exposure).
	ErrInvalidSlice = errors.New("invalid evidence slice")

	// ErrInvalidScope is returned for a query scope that fails validation.
	ErrInvalidScope = errors.New("invalid query scope")
)

// NodeError wraps an error with the node that caused it.
type NodeError struct {
	// NodeID is the node that caused the error.
	NodeID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// EdgeError wraps an error with the edge that caused it.
type EdgeError struct {
	// Key identifies the edge that caused the error.
	Key EdgeKey

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EdgeError) Error() string {
	return fmt.Sprintf("edge %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EdgeError) Unwrap() error {
	return e.Err
}

// CycleError reports a directed cycle with the offending node path.
type CycleError struct {
	// Path is the node sequence forming the cycle. The first node appears
	// again at the end.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycleDetected for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError for the given cycle path.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}
