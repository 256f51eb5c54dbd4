package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

var ErrReadingConfigFailed = errors.New("reading config file failed")
var ErrParsingConfigFailed = errors.New("parsing config file failed")
var ErrUnknownAdapter = errors.New("unknown database adapter")
var ErrMissingDSN = errors.New("database dsn must not be empty")
var ErrReplicaNotSupported = errors.New("replica dsn is only supported by the pgx adapter")
var ErrUnknownCatalogSource = errors.New("unknown catalog source")
var ErrMissingCatalogFile = errors.New("catalog file must be set when the catalog source is file")
var ErrUnknownLogLevel = errors.New("unknown log level")
var ErrUnknownLogFormat = errors.New("unknown log format")
var ErrInvalidBuckets = errors.New("histogram buckets must be positive and strictly increasing")

const (
	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"

	CatalogSourceDB   = "db"
	CatalogSourceFile = "file"

	LogFormatText = "text"
	LogFormatJSON = "json"

	EnvDSN        = "ALARMSIM_DSN"
	EnvReplicaDSN = "ALARMSIM_REPLICA_DSN"
	EnvAdapter    = "ALARMSIM_ADAPTER"
	EnvOutputDir  = "ALARMSIM_OUTPUT_DIR"
)

// Config is the full simulator configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig holds the rate, mix and dispatch limits of a run.
// Seed 0 means a non-deterministic random source.
type SimulationConfig struct {
	FrequencyPerDay       int    `yaml:"frequency_per_day"`
	PercentAlarms         int    `yaml:"percent_alarms"`
	HighWaterMark         int    `yaml:"high_water_mark"`
	MaxTaskCount          int    `yaml:"max_task_count"`
	MaxParallel           int    `yaml:"max_parallel"`
	LatencyFlushThreshold int    `yaml:"latency_flush_threshold"`
	Seed                  uint64 `yaml:"seed"`
}

// DatabaseConfig selects the adapter and sizes its connection pool.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	ReplicaDSN      string        `yaml:"replica_dsn"`
	Adapter         string        `yaml:"adapter"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	OpenProcedure   string        `yaml:"open_procedure"`
	CloseProcedure  string        `yaml:"close_procedure"`
	CatalogTable    string        `yaml:"catalog_table"`
}

// CatalogConfig tells where the threshold catalog is read from.
type CatalogConfig struct {
	Source string `yaml:"source"`
	File   string `yaml:"file"`
}

// MetricsConfig holds the latency output directory, the optional Prometheus listen address
// and the action duration histogram buckets in seconds (empty means the Prometheus defaults).
type MetricsConfig struct {
	OutputDir      string    `yaml:"output_dir"`
	PrometheusAddr string    `yaml:"prometheus_addr"`
	Buckets        []float64 `yaml:"buckets"`
}

// LogConfig selects the slog handler and its level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for every key the file does not set.
func Default() Config {
	return Config{
		Simulation: SimulationConfig{
			PercentAlarms:         simulation.DefaultPercentAlarms,
			HighWaterMark:         simulation.DefaultHighWaterMark,
			MaxTaskCount:          simulation.DefaultMaxTaskCount,
			MaxParallel:           simulation.DefaultMaxTaskCount,
			LatencyFlushThreshold: simulation.DefaultLatencyFlushThreshold,
		},
		Database: DatabaseConfig{
			Adapter:         AdapterPGX,
			MaxConns:        50,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			OpenProcedure:   "open_threshold_event",
			CloseProcedure:  "close_threshold_event",
			CatalogTable:    "thresholds",
		},
		Catalog: CatalogConfig{
			Source: CatalogSourceDB,
		},
		Metrics: MetricsConfig{
			OutputDir: ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Join(ErrReadingConfigFailed, err)
		}

		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Join(ErrParsingConfigFailed, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Database.DSN = v
	}

	if v, ok := lookup(EnvReplicaDSN); ok && v != "" {
		c.Database.ReplicaDSN = v
	}

	if v, ok := lookup(EnvAdapter); ok && v != "" {
		c.Database.Adapter = strings.ToLower(v)
	}

	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.Metrics.OutputDir = v
	}
}

// Params returns the startup parameters of the simulation.
func (c Config) Params() simulation.Params {
	return simulation.Params{
		FrequencyPerDay: c.Simulation.FrequencyPerDay,
		PercentAlarms:   c.Simulation.PercentAlarms,
	}
}

// Validate checks everything a simulation run needs.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if err := c.Catalog.Validate(); err != nil {
		return err
	}

	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	return c.Log.Validate()
}

// Validate checks the adapter and the DSNs. Only the pgx adapter routes reads to a replica.
func (d DatabaseConfig) Validate() error {
	switch d.Adapter {
	case AdapterPGX:
	case AdapterSQL, AdapterSQLX:
		if d.ReplicaDSN != "" {
			return fmt.Errorf("%w: adapter %q", ErrReplicaNotSupported, d.Adapter)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, d.Adapter)
	}

	if d.DSN == "" {
		return ErrMissingDSN
	}

	return nil
}

// Validate checks the histogram buckets.
func (m MetricsConfig) Validate() error {
	for i, bucket := range m.Buckets {
		if bucket <= 0 || (i > 0 && bucket <= m.Buckets[i-1]) {
			return fmt.Errorf("%w: %v", ErrInvalidBuckets, m.Buckets)
		}
	}

	return nil
}

// Validate checks the catalog source.
func (c CatalogConfig) Validate() error {
	switch c.Source {
	case CatalogSourceDB:
		return nil
	case CatalogSourceFile:
		if c.File == "" {
			return ErrMissingCatalogFile
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCatalogSource, c.Source)
	}
}

// Validate checks the log level and format.
func (l LogConfig) Validate() error {
	if _, err := ParseLevel(l.Level); err != nil {
		return err
	}

	switch l.Format {
	case LogFormatText, LogFormatJSON:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogFormat, l.Format)
	}
}
