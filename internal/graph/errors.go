package graph

import "errors"

var (
	// ErrNegativeWeight is returned by AddEdge for a negative edge weight.
	ErrNegativeWeight = errors.New("edge weight must be non-negative")
	// ErrVertexRange is returned by AddEdge when an endpoint is outside
	// the declared vertex count.
	ErrVertexRange = errors.New("vertex id out of range")
)
