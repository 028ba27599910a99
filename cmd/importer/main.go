package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/transitio/transit_core/internal/db"
	"github.com/transitio/transit_core/internal/requests"
	"github.com/transitio/transit_core/internal/store"
)

// Reads a network request document and saves its definition part (stops,
// buses, routing settings) into PostgreSQL for the API server to load.
func main() {
	inputPath := flag.String("input", "", "Path to a network request document (required)")
	initSchema := flag.Bool("init-schema", false, "Create network tables before importing")

	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: transit-import --input=<network.json> [--init-schema]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	file, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer file.Close()

	doc, err := requests.ParseDocument(file)
	if err != nil {
		log.Fatalf("Failed to parse network document: %v", err)
	}

	network := &store.Network{
		Settings: doc.RoutingSettings.Settings(),
	}
	for _, request := range *doc.BaseRequests {
		switch request.Type {
		case requests.TypeStop:
			network.Stops = append(network.Stops, request.Stop())
		case requests.TypeBus:
			network.Buses = append(network.Buses, request.Bus())
		}
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if *initSchema {
		if err := store.Init(ctx, pool); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
		log.Println("Schema ready")
	}

	if err := store.Save(ctx, pool, network); err != nil {
		log.Fatalf("Failed to save network: %v", err)
	}

	log.Printf("Import complete: %d stops, %d buses", len(network.Stops), len(network.Buses))
}
