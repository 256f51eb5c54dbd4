// Package adapters provides database adapter implementations for the PostgreSQL backend.
//
// It abstracts the differences between pgx.Pool, sql.DB and sqlx.DB behind the DBAdapter
// interface, so the backend builds its SQL once and runs it on any of the three drivers.
package adapters
