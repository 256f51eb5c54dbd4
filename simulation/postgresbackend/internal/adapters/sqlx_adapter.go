package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a read query using the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	return s.QueryPrimary(ctx, query)
}

// QueryPrimary executes a query using the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) QueryPrimary(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows.Rows}, nil
}
