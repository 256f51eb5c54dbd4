package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AntonStoeckl/alarm-load-simulator/config"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation/postgresbackend"
)

type catalogLoader interface {
	LoadCatalog(ctx context.Context) (simulation.Catalog, error)
}

// openBackend connects with the configured adapter. The returned func closes every pool it opened.
func openBackend(ctx context.Context, d config.DatabaseConfig, logger *slog.Logger) (*postgresbackend.Backend, func(), error) {
	options := []postgresbackend.Option{
		postgresbackend.WithOpenProcedure(d.OpenProcedure),
		postgresbackend.WithCloseProcedure(d.CloseProcedure),
		postgresbackend.WithCatalogTable(d.CatalogTable),
		postgresbackend.WithLogger(logger),
	}

	switch d.Adapter {
	case config.AdapterPGX:
		primary, err := config.OpenPGXPool(ctx, d, d.DSN)
		if err != nil {
			return nil, nil, err
		}

		if d.ReplicaDSN == "" {
			backend, err := postgresbackend.NewBackendFromPGXPool(primary, options...)
			if err != nil {
				primary.Close()
				return nil, nil, err
			}

			return backend, primary.Close, nil
		}

		replica, err := config.OpenPGXPool(ctx, d, d.ReplicaDSN)
		if err != nil {
			primary.Close()
			return nil, nil, err
		}

		closeAll := func() {
			replica.Close()
			primary.Close()
		}

		backend, err := postgresbackend.NewBackendFromPGXPoolAndReplica(primary, replica, options...)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		return backend, closeAll, nil

	case config.AdapterSQL:
		db, err := config.OpenSQLDB(ctx, d)
		if err != nil {
			return nil, nil, err
		}

		backend, err := postgresbackend.NewBackendFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return backend, func() { _ = db.Close() }, nil

	case config.AdapterSQLX:
		db, err := config.OpenSQLX(ctx, d)
		if err != nil {
			return nil, nil, err
		}

		backend, err := postgresbackend.NewBackendFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return backend, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownAdapter, d.Adapter)
	}
}

// loadCatalog reads the catalog from the file or, for the db source, through loader.
func loadCatalog(ctx context.Context, c config.CatalogConfig, loader catalogLoader) (simulation.Catalog, error) {
	if c.Source == config.CatalogSourceFile {
		file, err := os.Open(c.File)
		if err != nil {
			return simulation.Catalog{}, fmt.Errorf("opening catalog file: %w", err)
		}
		defer func() { _ = file.Close() }()

		return simulation.DecodeCatalog(file)
	}

	catalog, err := loader.LoadCatalog(ctx)
	if err != nil {
		return simulation.Catalog{}, fmt.Errorf("loading catalog from database: %w", err)
	}

	return catalog, nil
}

func coordinatorOptions(cfg config.Config, logger *slog.Logger) []simulation.Option {
	options := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithLatencySink(simulation.NewFileLatencySink(cfg.Metrics.OutputDir)),
		simulation.WithHighWaterMark(cfg.Simulation.HighWaterMark),
		simulation.WithMaxTaskCount(cfg.Simulation.MaxTaskCount),
		simulation.WithMaxParallel(cfg.Simulation.MaxParallel),
		simulation.WithLatencyFlushThreshold(cfg.Simulation.LatencyFlushThreshold),
	}

	if cfg.Simulation.Seed != 0 {
		options = append(options, simulation.WithRandom(simulation.NewSeededRandom(cfg.Simulation.Seed)))
	}

	return options
}
