// Package dialect defines the database abstraction used to persist
// generation runs.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, through github.com/lib/pq
//   - MySQL: MySQL/MariaDB, through github.com/go-sql-driver/mysql
//   - SQLite: SQLite, through modernc.org/sqlite
//
// Each dialect is identified by the name its database/sql driver registers:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// Statements run through a Driver, or a Tx obtained from it:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Package dialect/sql implements Driver on top of database/sql.
package dialect
