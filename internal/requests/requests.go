// Package requests is the batch surface of the engine: it decodes a JSON
// request document, feeds the transport database in the required order
// (stops, buses, settings, build), and projects one response per stat
// request.
package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/transitio/transit_core/internal/models"
	"github.com/transitio/transit_core/internal/transport"
)

// Request type tags as they appear on the wire.
const (
	TypeStop  = "Stop"
	TypeBus   = "Bus"
	TypeRoute = "Route"
)

// kmhToMetersPerMinute converts the wire velocity (km/h) to the engine's
// meters per minute. The exact 50/3 factor is kept so outputs match the
// reference data bit-for-bit.
const kmhToMetersPerMinute = 50.0 / 3

var (
	// ErrMissingSection is returned when one of the three top-level
	// document slots is absent.
	ErrMissingSection = errors.New("missing document section")
	// ErrUnknownRequestType is returned for an unrecognised request type
	// tag.
	ErrUnknownRequestType = errors.New("unknown request type")
)

// Document is the top-level batch request document
type Document struct {
	RoutingSettings *RoutingSettings `json:"routing_settings"`
	BaseRequests    *[]BaseRequest   `json:"base_requests"`
	StatRequests    *[]StatRequest   `json:"stat_requests"`
}

// RoutingSettings carries the global routing parameters as they appear on
// the wire: wait in minutes, velocity in km/h
type RoutingSettings struct {
	BusWaitTime int     `json:"bus_wait_time"`
	BusVelocity float64 `json:"bus_velocity"`
}

// Settings converts the wire parameters into engine units
func (s RoutingSettings) Settings() models.RouteSettings {
	return models.RouteSettings{
		BusWaitTime: s.BusWaitTime,
		BusVelocity: s.BusVelocity * kmhToMetersPerMinute,
	}
}

// BaseRequest is a tagged definition request: a stop or a bus
type BaseRequest struct {
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	RoadDistances map[string]int `json:"road_distances"`
	Stops         []string       `json:"stops"`
	IsRoundtrip   bool           `json:"is_roundtrip"`
}

// Stop builds the stop entity of a TypeStop request
func (r BaseRequest) Stop() *models.Stop {
	distances := make(map[string]int, len(r.RoadDistances))
	for name, meters := range r.RoadDistances {
		distances[name] = meters
	}
	return models.NewStop(r.Name, r.Latitude, r.Longitude, distances)
}

// Bus builds the bus entity of a TypeBus request
func (r BaseRequest) Bus() *models.Bus {
	kind := models.RouteDirect
	if r.IsRoundtrip {
		kind = models.RouteCircular
	}
	return models.NewBus(r.Name, kind, r.Stops)
}

// StatRequest is a tagged query request
type StatRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// BusResponse answers a bus summary query
type BusResponse struct {
	RequestID       int     `json:"request_id"`
	RouteLength     int     `json:"route_length"`
	Curvature       float64 `json:"curvature"`
	StopCount       int     `json:"stop_count"`
	UniqueStopCount int     `json:"unique_stop_count"`
}

// StopResponse answers a stop summary query
type StopResponse struct {
	RequestID int      `json:"request_id"`
	Buses     []string `json:"buses"`
}

// RouteSearchResponse answers a shortest-route query
type RouteSearchResponse struct {
	RequestID int     `json:"request_id"`
	TotalTime float64 `json:"total_time"`
	Items     []any   `json:"items"`
}

// NotFoundResponse answers any query referencing an unknown entity or an
// unreachable stop pair
type NotFoundResponse struct {
	RequestID    int    `json:"request_id"`
	ErrorMessage string `json:"error_message"`
}

// ParseDocument decodes and validates a request document. All three
// top-level slots must be present and every request must carry a known
// type tag.
func ParseDocument(r io.Reader) (*Document, error) {
	var doc Document
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed request document: %w", err)
	}

	if doc.RoutingSettings == nil {
		return nil, fmt.Errorf("routing_settings: %w", ErrMissingSection)
	}
	if doc.BaseRequests == nil {
		return nil, fmt.Errorf("base_requests: %w", ErrMissingSection)
	}
	if doc.StatRequests == nil {
		return nil, fmt.Errorf("stat_requests: %w", ErrMissingSection)
	}

	for _, request := range *doc.BaseRequests {
		if request.Type != TypeStop && request.Type != TypeBus {
			return nil, fmt.Errorf("base request %q: %w", request.Type, ErrUnknownRequestType)
		}
	}
	for _, request := range *doc.StatRequests {
		if request.Type != TypeStop && request.Type != TypeBus && request.Type != TypeRoute {
			return nil, fmt.Errorf("stat request %q: %w", request.Type, ErrUnknownRequestType)
		}
	}

	return &doc, nil
}

// Process runs a parsed document against a fresh database: all stops, then
// all buses (bus initialisation resolves stop references), then settings
// and the router build, then the stat queries in input order. Definition
// errors are fatal; query misses become not-found responses and the batch
// continues.
func Process(doc *Document, db *transport.Database) ([]any, error) {
	for _, request := range *doc.BaseRequests {
		if request.Type == TypeStop {
			db.AddStop(request.Stop())
		}
	}
	for _, request := range *doc.BaseRequests {
		if request.Type == TypeBus {
			if err := db.AddBus(request.Bus()); err != nil {
				return nil, err
			}
		}
	}

	db.SetRouteSettings(doc.RoutingSettings.Settings())
	if err := db.BuildRouter(); err != nil {
		return nil, err
	}

	responses := make([]any, 0, len(*doc.StatRequests))
	for _, request := range *doc.StatRequests {
		response, err := dispatch(request, db)
		if err != nil {
			if errors.Is(err, transport.ErrNotFound) {
				responses = append(responses, NotFoundResponse{
					RequestID:    request.ID,
					ErrorMessage: "not found",
				})
				continue
			}
			return nil, err
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// dispatch answers a single stat request
func dispatch(request StatRequest, db *transport.Database) (any, error) {
	switch request.Type {
	case TypeBus:
		info, err := db.GetBus(request.Name)
		if err != nil {
			return nil, err
		}
		return BusResponse{
			RequestID:       request.ID,
			RouteLength:     info.RoadLength,
			Curvature:       info.Curvature,
			StopCount:       info.StopCount,
			UniqueStopCount: info.UniqueStopCount,
		}, nil
	case TypeStop:
		buses, err := db.GetStop(request.Name)
		if err != nil {
			return nil, err
		}
		return StopResponse{RequestID: request.ID, Buses: buses}, nil
	case TypeRoute:
		route, err := db.GetRoute(request.From, request.To)
		if err != nil {
			return nil, err
		}
		return RouteSearchResponse{
			RequestID: request.ID,
			TotalTime: route.TotalTime,
			Items:     route.Items,
		}, nil
	default:
		return nil, fmt.Errorf("stat request %q: %w", request.Type, ErrUnknownRequestType)
	}
}

// Run executes a full batch: decode the document from r, process it
// against a fresh database, and write the response array to w
func Run(r io.Reader, w io.Writer) error {
	doc, err := ParseDocument(r)
	if err != nil {
		return err
	}

	responses, err := Process(doc, transport.NewDatabase())
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(responses); err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	return nil
}
