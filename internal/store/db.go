package store

import (
	"context"
	"database/sql"
)

// DBTX is the common interface between *sql.DB and *sql.Tx, allowing
// store implementations to run against either a connection pool or a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
