package gnn

import "errors"

// Sentinel errors for the whole package. Everything here is fatal: a forward
// pass either produces a complete result or fails validation up front, there
// is no partial output to recover. Call sites wrap these with fmt.Errorf
// ("ctx: %w", ErrX) so callers can still match via errors.Is.
var (
	// ErrShapeMismatch indicates incompatible dimensions between operands,
	// e.g. X's feature dimension vs W's input dimension, or the adjacency
	// node count vs X's row count.
	ErrShapeMismatch = errors.New("gnn: shape mismatch")

	// ErrIndexOutOfRange indicates an edge endpoint or batch pointer outside
	// valid bounds.
	ErrIndexOutOfRange = errors.New("gnn: index out of range")

	// ErrDegenerateInput indicates an input no layer can do anything useful
	// with, e.g. a zero-node graph.
	ErrDegenerateInput = errors.New("gnn: degenerate input")
)
