package routing

import "errors"

var (
	// ErrUnknownSource is returned when a route is requested from a vertex
	// that was not in the router's precomputed source set.
	ErrUnknownSource = errors.New("source vertex not precomputed")
	// ErrNoRoute is returned when the target is unreachable from the
	// source.
	ErrNoRoute = errors.New("no route")
	// ErrBadRouteHandle is returned for an unknown or released route id,
	// or an out-of-range edge index.
	ErrBadRouteHandle = errors.New("bad route handle")
)
