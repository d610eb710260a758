package dialect

import "context"

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the Exec and Query methods.
type ExecQuerier interface {
	// Exec executes a statement. v is nil or a *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query runs a query and stores the rows in v, a *sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface the storage layer runs statements with.
type Driver interface {
	ExecQuerier
	// Tx starts a transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
