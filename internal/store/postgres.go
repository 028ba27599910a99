// Package store persists a transit network description in PostgreSQL so
// the API server can load it without re-reading the original request
// document.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitio/transit_core/internal/models"
)

const batchSize = 1000

// Network is a complete network description: routing settings plus stops
// and buses in their definition order. Definition order matters because it
// fixes the graph's vertex numbering.
type Network struct {
	Settings models.RouteSettings
	Stops    []*models.Stop
	Buses    []*models.Bus
}

// Init creates the network tables when they do not exist yet
func Init(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stop (
			id   SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			lat  DOUBLE PRECISION NOT NULL,
			lon  DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stop_distance (
			from_name TEXT NOT NULL,
			to_name   TEXT NOT NULL,
			meters    INTEGER NOT NULL,
			PRIMARY KEY (from_name, to_name)
		)`,
		`CREATE TABLE IF NOT EXISTS bus (
			id           SERIAL PRIMARY KEY,
			number       TEXT NOT NULL UNIQUE,
			is_roundtrip BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bus_stop (
			bus_number TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			stop_name  TEXT NOT NULL,
			PRIMARY KEY (bus_number, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS routing_settings (
			id            INTEGER PRIMARY KEY DEFAULT 1,
			bus_wait_time INTEGER NOT NULL,
			bus_velocity  DOUBLE PRECISION NOT NULL
		)`,
	}

	for _, statement := range statements {
		if _, err := db.Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save replaces the stored network with the given one
func Save(ctx context.Context, db *pgxpool.Pool, network *Network) error {
	if _, err := db.Exec(ctx,
		"TRUNCATE TABLE stop, stop_distance, bus, bus_stop, routing_settings"); err != nil {
		return fmt.Errorf("failed to clear network: %w", err)
	}

	if err := saveStops(ctx, db, network.Stops); err != nil {
		return err
	}
	log.Printf("Saved %d stops", len(network.Stops))

	if err := saveBuses(ctx, db, network.Buses); err != nil {
		return err
	}
	log.Printf("Saved %d buses", len(network.Buses))

	// Velocity is stored in meters per minute, already converted from the
	// document's km/h.
	if _, err := db.Exec(ctx, `
		INSERT INTO routing_settings (id, bus_wait_time, bus_velocity)
		VALUES (1, $1, $2)
	`, network.Settings.BusWaitTime, network.Settings.BusVelocity); err != nil {
		return fmt.Errorf("failed to save routing settings: %w", err)
	}

	return nil
}

// saveStops batch-inserts stops and their declared road distances
func saveStops(ctx context.Context, db *pgxpool.Pool, stops []*models.Stop) error {
	batch := &pgx.Batch{}
	for _, stop := range stops {
		batch.Queue(`
			INSERT INTO stop (name, lat, lon) VALUES ($1, $2, $3)
		`, stop.Name, stop.Lat, stop.Lon)
		for neighbour, meters := range stop.Distances {
			batch.Queue(`
				INSERT INTO stop_distance (from_name, to_name, meters)
				VALUES ($1, $2, $3)
				ON CONFLICT (from_name, to_name) DO UPDATE SET meters = EXCLUDED.meters
			`, stop.Name, neighbour, meters)
		}
		if batch.Len() >= batchSize {
			if err := executeBatch(ctx, db, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		return executeBatch(ctx, db, batch)
	}
	return nil
}

// saveBuses batch-inserts buses with their ordered stop sequences
func saveBuses(ctx context.Context, db *pgxpool.Pool, buses []*models.Bus) error {
	batch := &pgx.Batch{}
	for _, bus := range buses {
		batch.Queue(`
			INSERT INTO bus (number, is_roundtrip) VALUES ($1, $2)
		`, bus.Number, bus.Route.Kind == models.RouteCircular)
		for seq, stopName := range bus.Route.StopNames {
			batch.Queue(`
				INSERT INTO bus_stop (bus_number, seq, stop_name) VALUES ($1, $2, $3)
			`, bus.Number, seq, stopName)
		}
		if batch.Len() >= batchSize {
			if err := executeBatch(ctx, db, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		return executeBatch(ctx, db, batch)
	}
	return nil
}

// Load reads the stored network back in its original definition order
func Load(ctx context.Context, db *pgxpool.Pool) (*Network, error) {
	network := &Network{}

	stopRows, err := db.Query(ctx, `SELECT name, lat, lon FROM stop ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	defer stopRows.Close()

	stopByName := make(map[string]*models.Stop)
	for stopRows.Next() {
		var name string
		var lat, lon float64
		if err := stopRows.Scan(&name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stop := models.NewStop(name, lat, lon, nil)
		network.Stops = append(network.Stops, stop)
		stopByName[name] = stop
	}
	if err := stopRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}

	distRows, err := db.Query(ctx, `SELECT from_name, to_name, meters FROM stop_distance`)
	if err != nil {
		return nil, fmt.Errorf("failed to load distances: %w", err)
	}
	defer distRows.Close()

	for distRows.Next() {
		var fromName, toName string
		var meters int
		if err := distRows.Scan(&fromName, &toName, &meters); err != nil {
			return nil, fmt.Errorf("failed to scan distance: %w", err)
		}
		if stop, ok := stopByName[fromName]; ok {
			stop.Distances[toName] = meters
		}
	}
	if err := distRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load distances: %w", err)
	}

	busRows, err := db.Query(ctx, `
		SELECT b.number, b.is_roundtrip, bs.stop_name
		FROM bus b
		JOIN bus_stop bs ON bs.bus_number = b.number
		ORDER BY b.id, bs.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load buses: %w", err)
	}
	defer busRows.Close()

	var current *models.Bus
	for busRows.Next() {
		var number, stopName string
		var isRoundtrip bool
		if err := busRows.Scan(&number, &isRoundtrip, &stopName); err != nil {
			return nil, fmt.Errorf("failed to scan bus stop: %w", err)
		}
		if current == nil || current.Number != number {
			kind := models.RouteDirect
			if isRoundtrip {
				kind = models.RouteCircular
			}
			current = models.NewBus(number, kind, nil)
			network.Buses = append(network.Buses, current)
		}
		current.Route.StopNames = append(current.Route.StopNames, stopName)
	}
	if err := busRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load buses: %w", err)
	}

	if err := db.QueryRow(ctx, `
		SELECT bus_wait_time, bus_velocity FROM routing_settings WHERE id = 1
	`).Scan(&network.Settings.BusWaitTime, &network.Settings.BusVelocity); err != nil {
		return nil, fmt.Errorf("failed to load routing settings: %w", err)
	}

	return network, nil
}

// executeBatch executes a batch of queries
func executeBatch(ctx context.Context, db *pgxpool.Pool, batch *pgx.Batch) error {
	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}

	return nil
}
