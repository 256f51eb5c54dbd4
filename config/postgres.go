package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const driverPostgres = "postgres"

// PGXPoolConfig creates a pgxpool.Config for dsn with the pool limits of d.
func PGXPoolConfig(d DatabaseConfig, dsn string) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing pgx pool config: %w", err)
	}

	if d.MaxConns > 0 {
		dbConfig.MaxConns = d.MaxConns
	}
	if d.MinConns > 0 {
		dbConfig.MinConns = d.MinConns
	}
	if d.MaxConnLifetime > 0 {
		dbConfig.MaxConnLifetime = d.MaxConnLifetime
	}
	if d.MaxConnIdleTime > 0 {
		dbConfig.MaxConnIdleTime = d.MaxConnIdleTime
	}
	if d.ConnectTimeout > 0 {
		dbConfig.ConnConfig.ConnectTimeout = d.ConnectTimeout
	}

	return dbConfig, nil
}

// OpenPGXPool creates a pgx pool for dsn and pings it.
func OpenPGXPool(ctx context.Context, d DatabaseConfig, dsn string) (*pgxpool.Pool, error) {
	dbConfig, err := PGXPoolConfig(d, dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", pingErr)
	}

	return pool, nil
}

// OpenSQLDB opens a configured *sql.DB on the lib/pq driver and pings it.
func OpenSQLDB(ctx context.Context, d DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	applySQLPoolLimits(db, d)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", pingErr)
	}

	return db, nil
}

// OpenSQLX opens a configured *sqlx.DB on the lib/pq driver and pings it.
func OpenSQLX(ctx context.Context, d DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverPostgres, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	applySQLPoolLimits(db.DB, d)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", pingErr)
	}

	return db, nil
}

func applySQLPoolLimits(db *sql.DB, d DatabaseConfig) {
	if d.MaxConns > 0 {
		db.SetMaxOpenConns(int(d.MaxConns))
	}
	if d.MinConns > 0 {
		db.SetMaxIdleConns(int(d.MinConns))
	}
	if d.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(d.MaxConnLifetime)
	}
	if d.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(d.MaxConnIdleTime)
	}
}
