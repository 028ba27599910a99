package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/transitio/transit_core/internal/api"
	"github.com/transitio/transit_core/internal/cache"
	"github.com/transitio/transit_core/internal/db"
	"github.com/transitio/transit_core/internal/store"
	"github.com/transitio/transit_core/internal/transport"
)

func main() {
	log.Println("Starting transit API server...")

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established")

	if _, err := cache.GetClient(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("Redis connection established")

	// Load the stored network and compile it into the routing graph. The
	// network and graph are immutable from here on; route queries serialise
	// on the router's route cache.
	network, err := store.Load(context.Background(), pool)
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}

	database := transport.NewDatabase()
	for _, stop := range network.Stops {
		database.AddStop(stop)
	}
	for _, bus := range network.Buses {
		if err := database.AddBus(bus); err != nil {
			log.Fatalf("Failed to add bus: %v", err)
		}
	}
	database.SetRouteSettings(network.Settings)
	if err := database.BuildRouter(); err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}
	api.SetDatabase(database)
	log.Printf("Network loaded: %d stops, %d buses", len(network.Stops), len(network.Buses))

	app := fiber.New(fiber.Config{
		AppName:      "Transit API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", api.Health)
	app.Get("/v1/buses", api.BusInfo)
	app.Get("/v1/stops", api.StopInfo)
	app.Get("/v1/route-search", api.RouteSearch)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on http://localhost%s", addr)
	log.Printf("Route search: http://localhost%s/v1/route-search?from=STOP&to=STOP", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
