// Package models defines the transit network entities: stops, buses, bus
// routes and their derived statistics, routing settings, and the
// user-visible route response.
package models

import (
	"errors"
	"fmt"

	"github.com/transitio/transit_core/internal/geo"
)

// RouteKind tells how a bus traverses its stop sequence
type RouteKind string

const (
	// RouteDirect routes are traversed forward then backward; endpoints
	// once, interior stops twice.
	RouteDirect RouteKind = "Direct"
	// RouteCircular routes are traversed once in the given direction.
	RouteCircular RouteKind = "Circular"
)

// ErrMissingDistance is returned when a bus adjacency has no road distance
// defined in either direction.
var ErrMissingDistance = errors.New("no road distance in either direction")

// Stop represents a named transit stop location
type Stop struct {
	Name string
	Lat  float64
	Lon  float64
	// Distances maps a neighbour stop name to the road distance in meters.
	// Missing reverse directions are backfilled during bus initialization.
	Distances map[string]int
	// Buses is the set of bus numbers serving this stop, populated as
	// buses are added to the database.
	Buses map[string]struct{}
}

// NewStop creates a stop with initialized distance and bus sets
func NewStop(name string, lat, lon float64, distances map[string]int) *Stop {
	if distances == nil {
		distances = make(map[string]int)
	}
	return &Stop{
		Name:      name,
		Lat:       lat,
		Lon:       lon,
		Distances: distances,
		Buses:     make(map[string]struct{}),
	}
}

// BusRouteInfo holds the per-route aggregates computed once during
// initialization
type BusRouteInfo struct {
	StopCount       int
	UniqueStopCount int
	// GeoLength is the great-circle length of the route in meters.
	GeoLength float64
	// RoadLength is the road length of the route in meters.
	RoadLength int
	// Curvature is RoadLength / GeoLength.
	Curvature float64
}

// BusRoute is an ordered stop sequence with its traversal kind
type BusRoute struct {
	Kind      RouteKind
	StopNames []string
	Info      BusRouteInfo
}

// Bus is a numbered bus line
type Bus struct {
	Number string
	Route  BusRoute
}

// NewBus creates a bus whose route statistics are computed later by
// Initialize
func NewBus(number string, kind RouteKind, stopNames []string) *Bus {
	return &Bus{
		Number: number,
		Route: BusRoute{
			Kind:      kind,
			StopNames: stopNames,
		},
	}
}

// Initialize resolves the route's stop references and computes its
// aggregates. It must be called exactly once, after every referenced stop
// exists. Reciprocal road distances are completed first, so the length
// passes below can rely on both directions being defined.
func (r *BusRoute) Initialize(stopsByName map[string]*Stop) error {
	if err := r.completeDistances(stopsByName); err != nil {
		return err
	}

	unique := make(map[string]struct{}, len(r.StopNames))
	for _, name := range r.StopNames {
		unique[name] = struct{}{}
	}
	r.Info.UniqueStopCount = len(unique)

	r.Info.GeoLength = 0
	r.Info.RoadLength = 0
	for i := 1; i < len(r.StopNames); i++ {
		prev := stopsByName[r.StopNames[i-1]]
		curr := stopsByName[r.StopNames[i]]
		r.Info.GeoLength += geo.Distance(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
		r.Info.RoadLength += prev.Distances[curr.Name]
		if r.Kind == RouteDirect {
			r.Info.RoadLength += curr.Distances[prev.Name]
		}
	}

	switch r.Kind {
	case RouteDirect:
		r.Info.StopCount = 2*len(r.StopNames) - 1
		r.Info.GeoLength *= 2
	case RouteCircular:
		r.Info.StopCount = len(r.StopNames)
	default:
		return fmt.Errorf("unknown route kind %q", r.Kind)
	}

	r.Info.Curvature = float64(r.Info.RoadLength) / r.Info.GeoLength
	return nil
}

// completeDistances backfills missing reverse road distances for every
// adjacent stop pair of the route
func (r *BusRoute) completeDistances(stopsByName map[string]*Stop) error {
	for _, name := range r.StopNames {
		if _, ok := stopsByName[name]; !ok {
			return fmt.Errorf("route references unknown stop %q", name)
		}
	}
	for i := 1; i < len(r.StopNames); i++ {
		prev := stopsByName[r.StopNames[i-1]]
		curr := stopsByName[r.StopNames[i]]
		_, prevHas := prev.Distances[curr.Name]
		_, currHas := curr.Distances[prev.Name]
		if !prevHas && !currHas {
			return fmt.Errorf("%s - %s: %w", prev.Name, curr.Name, ErrMissingDistance)
		}
		if !prevHas {
			prev.Distances[curr.Name] = curr.Distances[prev.Name]
		}
		if !currHas {
			curr.Distances[prev.Name] = prev.Distances[curr.Name]
		}
	}
	return nil
}

// RouteSettings holds the global routing parameters
type RouteSettings struct {
	// BusWaitTime is the boarding wait penalty in minutes.
	BusWaitTime int
	// BusVelocity is the bus speed in meters per minute.
	BusVelocity float64
}

// RouteWaitItem is a "wait at stop" leg of a computed itinerary
type RouteWaitItem struct {
	Type     string  `json:"type"`
	StopName string  `json:"stop_name"`
	Time     float64 `json:"time"`
}

// RouteBusItem is a "ride bus" leg of a computed itinerary
type RouteBusItem struct {
	Type      string  `json:"type"`
	Bus       string  `json:"bus"`
	SpanCount int     `json:"span_count"`
	Time      float64 `json:"time"`
}

// RouteResponse is a shortest-time itinerary between two stops. Items
// alternate wait and bus legs, starting with a wait; their times sum to
// TotalTime.
type RouteResponse struct {
	TotalTime float64 `json:"total_time"`
	Items     []any   `json:"items"`
}
