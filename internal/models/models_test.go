package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitio/transit_core/internal/geo"
)

func threeStops() map[string]*Stop {
	return map[string]*Stop{
		"Marina": NewStop("Marina", 55.611087, 37.20829, map[string]int{
			"Harbour": 1000,
		}),
		"Harbour": NewStop("Harbour", 55.595884, 37.209755, map[string]int{
			"Terminal": 2000,
		}),
		"Terminal": NewStop("Terminal", 55.632761, 37.333324, nil),
	}
}

func TestBusRouteInitializeDirect(t *testing.T) {
	stops := threeStops()
	bus := NewBus("750", RouteDirect, []string{"Marina", "Harbour", "Terminal"})

	require.NoError(t, bus.Route.Initialize(stops))

	info := bus.Route.Info
	assert.Equal(t, 5, info.StopCount)
	assert.Equal(t, 3, info.UniqueStopCount)
	// Forward distances count twice: reverse directions were backfilled.
	assert.Equal(t, 6000, info.RoadLength)

	oneWay := geo.Distance(55.611087, 37.20829, 55.595884, 37.209755) +
		geo.Distance(55.595884, 37.209755, 55.632761, 37.333324)
	assert.InDelta(t, 2*oneWay, info.GeoLength, 1e-6)
	assert.InDelta(t, 6000/(2*oneWay), info.Curvature, 1e-9)
}

func TestBusRouteInitializeCircular(t *testing.T) {
	stops := threeStops()
	stops["Terminal"].Distances["Marina"] = 3000
	bus := NewBus("14", RouteCircular, []string{"Marina", "Harbour", "Terminal", "Marina"})

	require.NoError(t, bus.Route.Initialize(stops))

	info := bus.Route.Info
	assert.Equal(t, 4, info.StopCount)
	assert.Equal(t, 3, info.UniqueStopCount)
	assert.Equal(t, 6000, info.RoadLength)

	loop := geo.Distance(55.611087, 37.20829, 55.595884, 37.209755) +
		geo.Distance(55.595884, 37.209755, 55.632761, 37.333324) +
		geo.Distance(55.632761, 37.333324, 55.611087, 37.20829)
	assert.InDelta(t, loop, info.GeoLength, 1e-6)
}

func TestBusRouteInitializeReciprocalCompletion(t *testing.T) {
	t.Run("Backfills missing reverse direction", func(t *testing.T) {
		stops := threeStops()
		bus := NewBus("750", RouteDirect, []string{"Marina", "Harbour", "Terminal"})
		require.NoError(t, bus.Route.Initialize(stops))

		assert.Equal(t, 1000, stops["Harbour"].Distances["Marina"])
		assert.Equal(t, 2000, stops["Terminal"].Distances["Harbour"])
	})

	t.Run("Keeps explicit asymmetric distances", func(t *testing.T) {
		stops := threeStops()
		stops["Harbour"].Distances["Marina"] = 1100
		bus := NewBus("750", RouteDirect, []string{"Marina", "Harbour", "Terminal"})
		require.NoError(t, bus.Route.Initialize(stops))

		assert.Equal(t, 1100, stops["Harbour"].Distances["Marina"])
		// 1000 + 2000 forward, 1100 + 2000 backward.
		assert.Equal(t, 6100, bus.Route.Info.RoadLength)
	})

	t.Run("Fails when both directions are missing", func(t *testing.T) {
		stops := threeStops()
		delete(stops["Harbour"].Distances, "Terminal")
		bus := NewBus("750", RouteDirect, []string{"Marina", "Harbour", "Terminal"})

		err := bus.Route.Initialize(stops)
		assert.ErrorIs(t, err, ErrMissingDistance)
	})
}

func TestBusRouteInitializeUnknownStop(t *testing.T) {
	stops := threeStops()
	bus := NewBus("750", RouteDirect, []string{"Marina", "Atlantis"})

	err := bus.Route.Initialize(stops)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
}
