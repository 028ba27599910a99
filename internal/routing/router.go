// Package routing implements a shortest-path router over a directed
// weighted graph. Paths are precomputed with Dijkstra's algorithm from a
// designated set of source vertices; queries reconstruct the edge sequence
// of any (source, target) pair on demand.
package routing

import (
	"container/heap"
	"fmt"

	"github.com/transitio/transit_core/internal/graph"
)

// RouteID identifies a reconstructed route held by the router. Ids are
// unique for the router's lifetime.
type RouteID = uint64

// RouteInfo describes a computed route. The edge sequence is retrieved
// through RouteEdge and stays cached until ReleaseRoute.
type RouteInfo struct {
	ID        RouteID
	Weight    float64
	EdgeCount int
}

// routeData is the per-target entry of a source's shortest-path table
type routeData struct {
	weight   float64
	prevEdge graph.EdgeID
	reached  bool
	hasPrev  bool
}

// Router answers shortest-path queries from precomputed per-source tables
type Router struct {
	g      *graph.DirectedWeightedGraph
	tables map[graph.VertexID][]routeData

	nextRouteID RouteID
	expanded    map[RouteID][]graph.EdgeID
}

// NewRouter runs Dijkstra's algorithm from every vertex in sources and
// keeps the resulting (weight, previous edge) tables. Queries from vertices
// outside sources fail with ErrUnknownSource.
func NewRouter(g *graph.DirectedWeightedGraph, sources []graph.VertexID) *Router {
	r := &Router{
		g:        g,
		tables:   make(map[graph.VertexID][]routeData, len(sources)),
		expanded: make(map[RouteID][]graph.EdgeID),
	}
	for _, source := range sources {
		r.tables[source] = r.dijkstra(source)
	}
	return r
}

// queueItem orders the Dijkstra frontier by (weight, vertex id). The
// secondary key makes extraction order, and with it tie-breaking between
// equal-weight paths, deterministic across runs.
type queueItem struct {
	weight float64
	vertex graph.VertexID
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].weight != pq[j].weight {
		return pq[i].weight < pq[j].weight
	}
	return pq[i].vertex < pq[j].vertex
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// dijkstra computes single-source shortest paths from source. Relaxations
// use strict less-than, so among equal-weight paths the first one settled
// wins and outputs stay stable.
func (r *Router) dijkstra(source graph.VertexID) []routeData {
	dist := make([]routeData, r.g.VertexCount())
	dist[source] = routeData{weight: 0, reached: true}

	settled := make([]bool, r.g.VertexCount())

	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, queueItem{weight: 0, vertex: source})

	for open.Len() > 0 {
		current := heap.Pop(open).(queueItem)
		if settled[current.vertex] {
			continue
		}
		settled[current.vertex] = true

		for _, edgeID := range r.g.IncidentEdges(current.vertex) {
			edge := r.g.Edge(edgeID)
			candidate := dist[current.vertex].weight + edge.Weight
			if dist[edge.To].reached && candidate >= dist[edge.To].weight {
				continue
			}
			dist[edge.To] = routeData{
				weight:   candidate,
				prevEdge: edgeID,
				reached:  true,
				hasPrev:  true,
			}
			heap.Push(open, queueItem{weight: candidate, vertex: edge.To})
		}
	}

	return dist
}

// BuildRoute reconstructs the shortest path between two vertices. The
// returned route stays cached until ReleaseRoute; callers that skip the
// release accept unbounded cache growth.
func (r *Router) BuildRoute(from, to graph.VertexID) (*RouteInfo, error) {
	table, ok := r.tables[from]
	if !ok {
		return nil, fmt.Errorf("vertex %d: %w", from, ErrUnknownSource)
	}
	if to < 0 || to >= len(table) || !table[to].reached {
		return nil, fmt.Errorf("%d -> %d: %w", from, to, ErrNoRoute)
	}

	var edges []graph.EdgeID
	for vertex := to; table[vertex].hasPrev; {
		edgeID := table[vertex].prevEdge
		edges = append(edges, edgeID)
		vertex = r.g.Edge(edgeID).From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	id := r.nextRouteID
	r.nextRouteID++
	r.expanded[id] = edges

	return &RouteInfo{
		ID:        id,
		Weight:    table[to].weight,
		EdgeCount: len(edges),
	}, nil
}

// RouteEdge returns the k-th edge id (0-based) of a reconstructed route
func (r *Router) RouteEdge(id RouteID, k int) (graph.EdgeID, error) {
	edges, ok := r.expanded[id]
	if !ok {
		return 0, fmt.Errorf("route %d: %w", id, ErrBadRouteHandle)
	}
	if k < 0 || k >= len(edges) {
		return 0, fmt.Errorf("route %d edge %d of %d: %w", id, k, len(edges), ErrBadRouteHandle)
	}
	return edges[k], nil
}

// ReleaseRoute drops a cached reconstruction. The shortest-path tables stay
// resident for further queries.
func (r *Router) ReleaseRoute(id RouteID) {
	delete(r.expanded, id)
}
