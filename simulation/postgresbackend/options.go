package postgresbackend

import (
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Logger interface for SQL query logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option defines a functional option for configuring Backend.
type Option func(*Backend) error

// WithOpenProcedure sets the stored function that opens an event record.
// It is called as fn(threshold_id bigint, classification text, fields jsonb, started_at timestamptz)
// and must return the new record id.
func WithOpenProcedure(name string) Option {
	return func(b *Backend) error {
		if err := validateIdentifier(name); err != nil {
			return err
		}

		b.openProcedure = name

		return nil
	}
}

// WithCloseProcedure sets the stored function that closes an event record.
// It is called as fn(record_id bigint, ended_at timestamptz) and must return a boolean.
func WithCloseProcedure(name string) Option {
	return func(b *Backend) error {
		if err := validateIdentifier(name); err != nil {
			return err
		}

		b.closeProcedure = name

		return nil
	}
}

// WithCatalogTable sets the table the threshold catalog is read from.
func WithCatalogTable(tableName string) Option {
	return func(b *Backend) error {
		if tableName == "" {
			return ErrEmptyCatalogTableName
		}

		b.catalogTable = tableName

		return nil
	}
}

// WithLogger sets the logger for the Backend.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: catalog loads
// Warn level: non-critical issues like cleanup failures
// Error level: failed backend calls.
func WithLogger(logger Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

func validateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyProcedureName
	}

	if !identifierPattern.MatchString(name) {
		return ErrInvalidProcedureName
	}

	return nil
}
