package sql

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen/dialect"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		want    string
	}{
		{"Postgres", dialect.Postgres, dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", dialect.SQLite, dialect.SQLite},
		{"SQLite3", "sqlite3", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		query   string
		want    string
	}{
		{"Postgres", dialect.Postgres, "SELECT id FROM runs WHERE task = ? AND mode = ?", "SELECT id FROM runs WHERE task = $1 AND mode = $2"},
		{"Quoted", dialect.Postgres, "SELECT '?' FROM runs WHERE id = ?", "SELECT '?' FROM runs WHERE id = $1"},
		{"NoArgs", dialect.Postgres, "SELECT 1", "SELECT 1"},
		{"MySQL", dialect.MySQL, "SELECT id FROM runs WHERE task = ?", "SELECT id FROM runs WHERE task = ?"},
		{"SQLite", dialect.SQLite, "DELETE FROM runs WHERE id = ?", "DELETE FROM runs WHERE id = ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(tt.dialect, tt.query))
		})
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("Rows", func(t *testing.T) {
		mock.ExpectQuery(`SELECT name FROM featgen_instances WHERE run_id = \$1`).
			WithArgs("r1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("AES").AddRow("DES"))
		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM featgen_instances WHERE run_id = ?", []any{"r1"}, rows)
		require.NoError(t, err)
		var names []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			names = append(names, name)
		}
		require.NoError(t, rows.Close())
		assert.Equal(t, []string{"AES", "DES"}, names)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: query")
	})

	t.Run("InvalidTypes", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", []any{}, nil)
		assert.ErrorContains(t, err, "expect *sql.Rows")
		err = drv.Query(context.Background(), "SELECT 1", "args", &Rows{})
		assert.ErrorContains(t, err, "expect []any")
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectExec(`DELETE FROM featgen_runs WHERE id = \?`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	var res sql.Result
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM featgen_runs WHERE id = ?", []any{"r1"}, &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mock.ExpectExec("DROP TABLE").WillReturnError(errors.New("locked"))
	err = drv.Exec(context.Background(), "DROP TABLE featgen_runs", []any{}, nil)
	assert.ErrorContains(t, err, "dialect/sql: exec")

	err = drv.Exec(context.Background(), "SELECT 1", []any{}, new(int))
	assert.ErrorContains(t, err, "expect *sql.Result")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("Commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO featgen_runs \(id\) VALUES \(\$1\)`).
			WithArgs("r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO featgen_runs (id) VALUES (?)", []any{"r1"}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()
		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginError", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("no connection"))
		_, err := drv.Tx(context.Background())
		require.Error(t, err)
	})
}

func TestContextCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = drv.Query(ctx, "SELECT 1", []any{}, &Rows{})
	require.Error(t, err)
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db), WithSlowThreshold(5*time.Millisecond), WithLogger(logger))

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT").WillDelayFor(20 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("UPDATE").WillReturnError(errors.New("readonly"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, drv.Exec(ctx, "INSERT INTO t VALUES (1)", []any{}, nil))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	require.Error(t, drv.Exec(ctx, "UPDATE t SET x = 1", []any{}, nil))
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM t", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	stats := drv.QueryStats().Stats()
	assert.EqualValues(t, 1, stats.TotalQueries)
	assert.EqualValues(t, 3, stats.TotalExecs)
	assert.EqualValues(t, 1, stats.Errors)
	assert.GreaterOrEqual(t, stats.SlowQueries, int64(1))
	assert.Contains(t, stats.String(), "queries=1 execs=3")
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "statement failed")
}
