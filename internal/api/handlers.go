// Package api exposes the transit engine over HTTP. Handlers answer the
// same three query classes as the batch surface, with not-found misses
// reported as 404 responses.
package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitio/transit_core/internal/cache"
	"github.com/transitio/transit_core/internal/db"
	"github.com/transitio/transit_core/internal/transport"
)

var database *transport.Database

// SetDatabase installs the engine the handlers serve from. Must be called
// once before the server starts; the database must already be built.
func SetDatabase(d *transport.Database) {
	database = d
}

// BusInfoResponse projects a bus summary
type BusInfoResponse struct {
	RouteLength     int     `json:"route_length"`
	Curvature       float64 `json:"curvature"`
	StopCount       int     `json:"stop_count"`
	UniqueStopCount int     `json:"unique_stop_count"`
}

// StopInfoResponse projects a stop summary
type StopInfoResponse struct {
	Buses []string `json:"buses"`
}

// BusInfo handles the /v1/buses endpoint
func BusInfo(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameter: name",
		})
	}

	info, err := database.GetBus(name)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return notFound(c)
		}
		log.Printf("Bus query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(BusInfoResponse{
		RouteLength:     info.RoadLength,
		Curvature:       info.Curvature,
		StopCount:       info.StopCount,
		UniqueStopCount: info.UniqueStopCount,
	})
}

// StopInfo handles the /v1/stops endpoint
func StopInfo(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameter: name",
		})
	}

	buses, err := database.GetStop(name)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return notFound(c)
		}
		log.Printf("Stop query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(StopInfoResponse{Buses: buses})
}

// RouteSearch handles the /v1/route-search endpoint. Responses are cached
// in Redis; cache errors degrade to a plain engine computation.
func RouteSearch(c *fiber.Ctx) error {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: from and to",
		})
	}

	ctx := c.Context()
	cacheKey := cache.RouteKey(from, to)

	cached, err := cache.GetRoute(ctx, cacheKey)
	if err != nil {
		log.Printf("Route cache lookup failed: %v", err)
	}
	if cached != nil {
		return c.JSON(cached)
	}

	route, err := database.GetRoute(from, to)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return notFound(c)
		}
		log.Printf("Route query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if err := cache.SetRoute(ctx, cacheKey, route, cacheTTL()); err != nil {
		log.Printf("Failed to cache route: %v", err)
	}

	return c.JSON(route)
}

// Health handles the /health endpoint
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbStatus := "ok"
	dbErr := db.HealthCheck(ctx)
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisStatus := "ok"
	redisErr := cache.HealthCheck(ctx)
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(404).JSON(fiber.Map{
		"error_message": "not found",
	})
}

func cacheTTL() time.Duration {
	return cache.LoadConfigFromEnv().TTL
}
