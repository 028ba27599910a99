// Package transport owns the transit network: stops, buses and routing
// settings. It compiles the network into a time-weighted graph, runs the
// router over it, and answers bus, stop and route queries.
package transport

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/transitio/transit_core/internal/graph"
	"github.com/transitio/transit_core/internal/models"
	"github.com/transitio/transit_core/internal/routing"
)

// ErrNotFound is returned by queries that reference an unknown bus or
// stop, or a stop pair with no connecting route.
var ErrNotFound = errors.New("not found")

// vertex tags a graph vertex: bus == "" marks the abstract "waiting at the
// stop" vertex; otherwise the vertex is a bus instance at that stop.
type vertex struct {
	stopName string
	bus      string
}

// Database is the single owner of the network and its compiled routing
// graph. Definitions are absorbed first, then BuildRouter freezes the
// network; queries only run against the frozen graph/router pair.
type Database struct {
	settings models.RouteSettings

	stopByName  map[string]*models.Stop
	stopOrder   []string
	busByNumber map[string]*models.Bus
	busOrder    []string

	g                *graph.DirectedWeightedGraph
	router           *routing.Router
	routeMu          sync.Mutex // guards the router's route cache
	abstractIDByName map[string]graph.VertexID
	vertexByID       []vertex
}

// NewDatabase creates an empty network database
func NewDatabase() *Database {
	return &Database{
		stopByName:  make(map[string]*models.Stop),
		busByNumber: make(map[string]*models.Bus),
	}
}

// SetRouteSettings stores the global routing parameters. Must be called
// before BuildRouter.
func (d *Database) SetRouteSettings(settings models.RouteSettings) {
	d.settings = settings
}

// RouteSettings returns the stored routing parameters
func (d *Database) RouteSettings() models.RouteSettings {
	return d.settings
}

// AddStop registers a stop. Re-adding a name replaces the stop but keeps
// its position in the numbering order.
func (d *Database) AddStop(stop *models.Stop) {
	if _, ok := d.stopByName[stop.Name]; !ok {
		d.stopOrder = append(d.stopOrder, stop.Name)
	}
	d.stopByName[stop.Name] = stop
}

// AddBus registers a bus, computes its route statistics, and records the
// bus on every stop it serves. All referenced stops must already exist.
func (d *Database) AddBus(bus *models.Bus) error {
	if err := bus.Route.Initialize(d.stopByName); err != nil {
		return fmt.Errorf("bus %s: %w", bus.Number, err)
	}
	if _, ok := d.busByNumber[bus.Number]; !ok {
		d.busOrder = append(d.busOrder, bus.Number)
	}
	d.busByNumber[bus.Number] = bus
	for _, stopName := range bus.Route.StopNames {
		d.stopByName[stopName].Buses[bus.Number] = struct{}{}
	}
	return nil
}

// BuildRouter compiles the network into the routing graph and precomputes
// shortest paths from every abstract stop vertex. Definitions must not
// change afterwards.
//
// The graph uses a split-vertex encoding: one abstract vertex per stop and
// one bus-instance vertex per position of each stop in each bus's expanded
// stop list. Boarding and alighting edges each carry half the wait time, so
// a boarded leg pays exactly one wait and a transfer, forced through the
// abstract vertex, pays it again.
func (d *Database) BuildRouter() error {
	vertexCount := len(d.stopOrder)
	for _, number := range d.busOrder {
		bus := d.busByNumber[number]
		runLength := len(bus.Route.StopNames)
		if bus.Route.Kind == models.RouteDirect {
			runLength *= 2
		}
		vertexCount += runLength
	}

	d.g = graph.NewDirectedWeightedGraph(vertexCount)
	d.abstractIDByName = make(map[string]graph.VertexID, len(d.stopOrder))
	d.vertexByID = make([]vertex, 0, vertexCount)

	abstract := make([]graph.VertexID, 0, len(d.stopOrder))
	for _, stopName := range d.stopOrder {
		id := len(d.vertexByID)
		d.abstractIDByName[stopName] = id
		d.vertexByID = append(d.vertexByID, vertex{stopName: stopName})
		abstract = append(abstract, id)
	}

	for _, number := range d.busOrder {
		bus := d.busByNumber[number]
		stops := make([]*models.Stop, len(bus.Route.StopNames))
		for i, stopName := range bus.Route.StopNames {
			stops[i] = d.stopByName[stopName]
		}
		if err := d.addBusRun(stops, number); err != nil {
			return err
		}
		if bus.Route.Kind == models.RouteDirect {
			reversed := make([]*models.Stop, len(stops))
			for i, stop := range stops {
				reversed[len(stops)-1-i] = stop
			}
			if err := d.addBusRun(reversed, number); err != nil {
				return err
			}
		}
	}

	d.router = routing.NewRouter(d.g, abstract)
	log.Printf("Routing graph built: %d vertices, %d edges, %d source stops",
		d.g.VertexCount(), d.g.EdgeCount(), len(abstract))
	return nil
}

// addBusRun appends one run of bus-instance vertices with their boarding,
// alighting and ride edges
func (d *Database) addBusRun(run []*models.Stop, busNumber string) error {
	halfWait := float64(d.settings.BusWaitTime) / 2
	for i, stop := range run {
		abstractID := d.abstractIDByName[stop.Name]
		current := len(d.vertexByID)
		d.vertexByID = append(d.vertexByID, vertex{stopName: stop.Name, bus: busNumber})

		if _, err := d.g.AddEdge(abstractID, current, halfWait); err != nil {
			return fmt.Errorf("bus %s boarding edge at %s: %w", busNumber, stop.Name, err)
		}
		if _, err := d.g.AddEdge(current, abstractID, halfWait); err != nil {
			return fmt.Errorf("bus %s alighting edge at %s: %w", busNumber, stop.Name, err)
		}

		if i > 0 {
			prevStop := run[i-1]
			rideTime := float64(prevStop.Distances[stop.Name]) / d.settings.BusVelocity
			if _, err := d.g.AddEdge(current-1, current, rideTime); err != nil {
				return fmt.Errorf("bus %s ride edge %s -> %s: %w", busNumber, prevStop.Name, stop.Name, err)
			}
		}
	}
	return nil
}

// GetBus returns the precomputed statistics of a bus line
func (d *Database) GetBus(number string) (*models.BusRouteInfo, error) {
	bus, ok := d.busByNumber[number]
	if !ok {
		return nil, fmt.Errorf("bus %s: %w", number, ErrNotFound)
	}
	info := bus.Route.Info
	return &info, nil
}

// GetStop returns the bus numbers serving a stop in ascending
// lexicographic order
func (d *Database) GetStop(name string) ([]string, error) {
	stop, ok := d.stopByName[name]
	if !ok {
		return nil, fmt.Errorf("stop %s: %w", name, ErrNotFound)
	}
	buses := make([]string, 0, len(stop.Buses))
	for number := range stop.Buses {
		buses = append(buses, number)
	}
	sort.Strings(buses)
	return buses, nil
}

// GetRoute computes the shortest-time itinerary between two stops. Unknown
// stops and unreachable targets report ErrNotFound; identical source and
// target yield a zero-time route with no items.
func (d *Database) GetRoute(from, to string) (*models.RouteResponse, error) {
	if d.router == nil {
		return nil, errors.New("router not built")
	}
	fromID, ok := d.abstractIDByName[from]
	if !ok {
		return nil, fmt.Errorf("stop %s: %w", from, ErrNotFound)
	}
	toID, ok := d.abstractIDByName[to]
	if !ok {
		return nil, fmt.Errorf("stop %s: %w", to, ErrNotFound)
	}

	d.routeMu.Lock()
	defer d.routeMu.Unlock()

	info, err := d.router.BuildRoute(fromID, toID)
	if err != nil {
		if errors.Is(err, routing.ErrNoRoute) {
			return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrNotFound)
		}
		return nil, err
	}
	defer d.router.ReleaseRoute(info.ID)

	return d.translateRoute(info)
}

// translateRoute materialises a reconstructed edge sequence into the
// alternating Wait/Bus actions of a route response. Every path between
// abstract vertices alternates abstract and bus-instance runs, so an edge
// into a bus-instance vertex is a boarding or a continued ride, and an edge
// back into an abstract vertex closes the open ride.
func (d *Database) translateRoute(info *routing.RouteInfo) (*models.RouteResponse, error) {
	response := &models.RouteResponse{Items: []any{}}
	var open *models.RouteBusItem

	for k := 0; k < info.EdgeCount; k++ {
		edgeID, err := d.router.RouteEdge(info.ID, k)
		if err != nil {
			return nil, err
		}
		edge := d.g.Edge(edgeID)
		response.TotalTime += edge.Weight

		to := d.vertexByID[edge.To]
		if to.bus != "" {
			if open == nil {
				// Boarding: the edge carries half the wait, the later
				// alighting edge carries the other half.
				from := d.vertexByID[edge.From]
				response.Items = append(response.Items, models.RouteWaitItem{
					Type:     "Wait",
					StopName: from.stopName,
					Time:     edge.Weight * 2,
				})
				open = &models.RouteBusItem{Type: "Bus", Bus: to.bus}
			} else {
				if to.bus != open.Bus {
					return nil, fmt.Errorf("route crosses from bus %s to %s without alighting", open.Bus, to.bus)
				}
				open.SpanCount++
				open.Time += edge.Weight
			}
		} else {
			if open == nil {
				return nil, errors.New("route alights without a boarded bus")
			}
			response.Items = append(response.Items, *open)
			open = nil
		}
	}

	return response, nil
}
