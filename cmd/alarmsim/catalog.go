package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/alarm-load-simulator/config"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

func newCatalogCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Load the threshold catalog and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return summarizeCatalog(cmd, cfg)
		},
	}
}

func summarizeCatalog(cmd *cobra.Command, cfg config.Config) error {
	if err := cfg.Catalog.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var loader catalogLoader
	if cfg.Catalog.Source == config.CatalogSourceDB {
		if err := cfg.Database.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		backend, closeDB, err := openBackend(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer closeDB()

		loader = backend
	}

	catalog, err := loadCatalog(ctx, cfg.Catalog, loader)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\nalarms: %d\nwarnings: %d\n",
		catalog.Len(),
		catalog.CountByClassification(simulation.Alarm),
		catalog.CountByClassification(simulation.Warning))

	return err
}
