package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/alarm-load-simulator/config"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation/promadapters"
)

const (
	metricsPath           = "/metrics"
	metricsReadTimeout    = 5 * time.Second
	metricsShutdownPeriod = 5 * time.Second
)

func newRunCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation until interrupted",
		Long: `Run opens and closes events against the configured database until SIGINT or
SIGTERM. On shutdown the pending latency samples are flushed and a summary is printed.`,
		Example: `  alarmsim run --config alarmsim.yaml
  alarmsim run --config alarmsim.yaml --frequency 86400 --percent-alarms 30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return runSimulation(cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&flags.frequency, "frequency", "f", 0, "events per day")
	cmd.Flags().IntVarP(&flags.percentAlarms, "percent-alarms", "p", simulation.DefaultPercentAlarms, "share of alarm events in percent (0-100)")

	return cmd
}

func runSimulation(cmd *cobra.Command, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
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

	backend, closeDB, err := openBackend(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer closeDB()

	catalog, err := loadCatalog(ctx, cfg.Catalog, backend)
	if err != nil {
		return err
	}

	options := coordinatorOptions(cfg, logger)

	if cfg.Metrics.PrometheusAddr != "" {
		registry := prometheus.NewRegistry()
		collector := promadapters.NewMetricsCollector(registry, promadapters.WithBuckets(cfg.Metrics.Buckets))
		options = append(options, simulation.WithMetrics(collector))

		stopMetrics := serveMetrics(cfg.Metrics.PrometheusAddr, registry, logger)
		defer stopMetrics()
	}

	coordinator, err := simulation.NewCoordinator(cfg.Params(), catalog, backend, options...)
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	if err := coordinator.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown requested", "signal", sig.String())
	case <-coordinator.Failed():
		logger.Error("simulation loop failed, shutting down", "error", coordinator.Err())
	case <-ctx.Done():
	}

	summary := coordinator.Stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "executed: %d\nerrors: %d\ndiscarded: %d\n",
		summary.Executed, summary.Errors, summary.Discarded)

	return coordinator.Err()
}

// serveMetrics exposes the registry on addr until the returned func is called.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promadapters.Handler(registry))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr, "path", metricsPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err.Error())
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownPeriod)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err.Error())
		}
	}
}
