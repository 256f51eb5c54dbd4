// Command alarmsim generates synthetic alarm and warning events against a PostgreSQL record store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/alarm-load-simulator/config"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath    string
	frequency     int
	percentAlarms int
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "alarmsim",
		Short: "Synthetic alarm/warning event load generator",
		Long: `alarmsim opens and closes alarm and warning events against a PostgreSQL
record store at a configurable average rate, with Gaussian timing jitter,
and records the latency of every open (insert) and close (update) call.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newCatalogCmd(flags))

	return rootCmd
}

// loadConfig reads the config file and lets explicitly set flags win over it.
func loadConfig(cmd *cobra.Command, flags *cliFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("frequency") {
		cfg.Simulation.FrequencyPerDay = flags.frequency
	}

	if cmd.Flags().Changed("percent-alarms") {
		cfg.Simulation.PercentAlarms = flags.percentAlarms
	}

	return cfg, nil
}
