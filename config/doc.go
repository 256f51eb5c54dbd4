// Package config loads the simulator configuration and builds PostgreSQL connections from it.
//
// Configuration comes from an optional YAML file layered over defaults, followed by
// environment overrides (ALARMSIM_DSN, ALARMSIM_REPLICA_DSN, ALARMSIM_ADAPTER, ALARMSIM_OUTPUT_DIR).
// Command line flags are applied by the caller after Load.
//
// The connection factories cover the three supported adapters: pgx.Pool, sql.DB (lib/pq) and sqlx.DB.
package config
