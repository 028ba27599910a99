package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitio/transit_core/internal/graph"
)

// mustAddEdge keeps graph fixtures terse
func mustAddEdge(t *testing.T, g *graph.DirectedWeightedGraph, from, to graph.VertexID, weight float64) graph.EdgeID {
	t.Helper()
	id, err := g.AddEdge(from, to, weight)
	require.NoError(t, err)
	return id
}

func TestBuildRouteLineGraph(t *testing.T) {
	// 0 -> 1 -> 2 -> 3 chain.
	g := graph.NewDirectedWeightedGraph(4)
	e01 := mustAddEdge(t, g, 0, 1, 1.0)
	e12 := mustAddEdge(t, g, 1, 2, 2.0)
	e23 := mustAddEdge(t, g, 2, 3, 3.0)

	r := NewRouter(g, []graph.VertexID{0})

	info, err := r.BuildRoute(0, 3)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, info.Weight, 1e-9)
	assert.Equal(t, 3, info.EdgeCount)

	for i, want := range []graph.EdgeID{e01, e12, e23} {
		got, err := r.RouteEdge(info.ID, i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBuildRoutePicksCheaperPath(t *testing.T) {
	// Direct edge 0 -> 2 is more expensive than the detour through 1.
	g := graph.NewDirectedWeightedGraph(3)
	mustAddEdge(t, g, 0, 2, 10.0)
	e01 := mustAddEdge(t, g, 0, 1, 2.0)
	e12 := mustAddEdge(t, g, 1, 2, 3.0)

	r := NewRouter(g, []graph.VertexID{0})

	info, err := r.BuildRoute(0, 2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, info.Weight, 1e-9)
	assert.Equal(t, 2, info.EdgeCount)

	first, err := r.RouteEdge(info.ID, 0)
	require.NoError(t, err)
	second, err := r.RouteEdge(info.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, e01, first)
	assert.Equal(t, e12, second)
}

func TestBuildRouteDeterministicTieBreak(t *testing.T) {
	// Two equal-weight paths 0 -> 1 -> 3 and 0 -> 2 -> 3. Strict-< relaxation
	// keeps the first settled predecessor, so the path through vertex 1 must
	// win on every rebuild.
	build := func() []graph.EdgeID {
		g := graph.NewDirectedWeightedGraph(4)
		e01 := mustAddEdge(t, g, 0, 1, 1.0)
		mustAddEdge(t, g, 0, 2, 1.0)
		e13 := mustAddEdge(t, g, 1, 3, 1.0)
		mustAddEdge(t, g, 2, 3, 1.0)

		r := NewRouter(g, []graph.VertexID{0})
		info, err := r.BuildRoute(0, 3)
		require.NoError(t, err)
		require.Equal(t, 2, info.EdgeCount)

		first, err := r.RouteEdge(info.ID, 0)
		require.NoError(t, err)
		second, err := r.RouteEdge(info.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, e01, first)
		assert.Equal(t, e13, second)
		return []graph.EdgeID{first, second}
	}

	reference := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, reference, build())
	}
}

func TestBuildRouteSameSourceAndTarget(t *testing.T) {
	g := graph.NewDirectedWeightedGraph(2)
	mustAddEdge(t, g, 0, 1, 1.0)

	r := NewRouter(g, []graph.VertexID{0})

	info, err := r.BuildRoute(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, info.EdgeCount)
	assert.InDelta(t, 0.0, info.Weight, 1e-9)
}

func TestBuildRouteFailures(t *testing.T) {
	g := graph.NewDirectedWeightedGraph(3)
	mustAddEdge(t, g, 0, 1, 1.0)
	// Vertex 2 is disconnected.

	r := NewRouter(g, []graph.VertexID{0})

	t.Run("Unreachable target", func(t *testing.T) {
		_, err := r.BuildRoute(0, 2)
		assert.ErrorIs(t, err, ErrNoRoute)
	})

	t.Run("Source outside precomputed set", func(t *testing.T) {
		_, err := r.BuildRoute(1, 0)
		assert.ErrorIs(t, err, ErrUnknownSource)
	})
}

func TestRouteIDLifecycle(t *testing.T) {
	g := graph.NewDirectedWeightedGraph(2)
	mustAddEdge(t, g, 0, 1, 1.0)

	r := NewRouter(g, []graph.VertexID{0})

	first, err := r.BuildRoute(0, 1)
	require.NoError(t, err)
	second, err := r.BuildRoute(0, 1)
	require.NoError(t, err)

	t.Run("Ids increase monotonically", func(t *testing.T) {
		assert.Greater(t, second.ID, first.ID)
	})

	t.Run("Released routes reject edge lookups", func(t *testing.T) {
		r.ReleaseRoute(first.ID)
		_, err := r.RouteEdge(first.ID, 0)
		assert.ErrorIs(t, err, ErrBadRouteHandle)
	})

	t.Run("Release keeps tables resident", func(t *testing.T) {
		info, err := r.BuildRoute(0, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, info.Weight, 1e-9)
	})

	t.Run("Out-of-range edge index", func(t *testing.T) {
		_, err := r.RouteEdge(second.ID, 1)
		assert.ErrorIs(t, err, ErrBadRouteHandle)
		_, err = r.RouteEdge(second.ID, -1)
		assert.ErrorIs(t, err, ErrBadRouteHandle)
	})
}
