// Package sql implements dialect.Driver on top of database/sql.
//
// Statements are written with "?" placeholders; Conn rebinds them to "$n"
// for Postgres:
//
//	drv, err := sql.Open(dialect.SQLite, "file:runs.db")
//	if err != nil {
//		return err
//	}
//	rows := &sql.Rows{}
//	if err := drv.Query(ctx, "SELECT id FROM runs WHERE task = ?", []any{task}, rows); err != nil {
//		return err
//	}
//	defer rows.Close()
//
// StatsDriver wraps a Driver with statement statistics and slow query
// logging.
package sql
