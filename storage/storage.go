// Package storage persists generation runs: the named instances a
// generator produced for a task, in rank order.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/featgen/dialect"
	"github.com/syssam/featgen/dialect/sql"
	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/solver"
)

// Generation modes recorded with a run.
const (
	ModeBasic    = "basic"
	ModeAdvanced = "advanced"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("storage: run not found")

// Source provides named instances in rank order. *instance.Result
// implements it.
type Source interface {
	Ranked() []string
	Get(name string) (*solver.Instance, bool)
}

// Run is a stored generation run.
type Run struct {
	ID      string
	Task    string
	Mode    string
	Created time.Time
	// Instances is only populated by Store.Run.
	Instances []*Named
}

// Named is a stored instance with its display name.
type Named struct {
	Name        string
	Fingerprint int64
	Snapshot    *Snapshot
}

// Store reads and writes runs.
type Store struct {
	drv    dialect.Driver
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the function used to timestamp runs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store running statements through drv. The schema is not
// created; call Migrate.
func New(drv dialect.Driver, opts ...Option) *Store {
	s := &Store{drv: drv, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database, wraps the connection with statement
// statistics and creates the schema. driver is one of "sqlite", "postgres"
// or "mysql".
func Open(ctx context.Context, driver, source string, opts ...Option) (*Store, error) {
	drv, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if drv.Dialect() == dialect.SQLite {
		// In-memory databases live as long as their connection.
		drv.DB().SetMaxOpenConns(1)
	}
	s := New(drv, opts...)
	s.drv = sql.NewStatsDriver(drv, sql.WithLogger(s.logger))
	if err := s.Migrate(ctx); err != nil {
		_ = drv.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	blob := "BLOB"
	switch s.drv.Dialect() {
	case dialect.Postgres:
		blob = "BYTEA"
	case dialect.MySQL:
		blob = "LONGBLOB"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS featgen_runs (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	task VARCHAR(255) NOT NULL,
	mode VARCHAR(16) NOT NULL,
	created_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS featgen_instances (
	run_id VARCHAR(36) NOT NULL,
	position INTEGER NOT NULL,
	name VARCHAR(255) NOT NULL,
	fingerprint BIGINT NOT NULL,
	snapshot ` + blob + ` NOT NULL,
	PRIMARY KEY (run_id, position)
)`,
	}
	for _, stmt := range stmts {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// SaveRun stores the instances of src as a new run and returns it.
func (s *Store) SaveRun(ctx context.Context, task, mode string, src Source) (*Run, error) {
	run := &Run{
		ID:      uuid.NewString(),
		Task:    task,
		Mode:    mode,
		Created: time.UnixMilli(s.now().UnixMilli()).UTC(),
	}
	for _, name := range src.Ranked() {
		inst, ok := src.Get(name)
		if !ok {
			return nil, fmt.Errorf("storage: instance %q not found in source", name)
		}
		run.Instances = append(run.Instances, &Named{
			Name:        name,
			Fingerprint: instance.Fingerprint(inst),
			Snapshot:    NewSnapshot(inst),
		})
	}
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		if err := tx.Exec(ctx,
			"INSERT INTO featgen_runs (id, task, mode, created_at) VALUES (?, ?, ?, ?)",
			[]any{run.ID, run.Task, run.Mode, run.Created.UnixMilli()}, nil,
		); err != nil {
			return err
		}
		for i, n := range run.Instances {
			data, err := n.Snapshot.Encode()
			if err != nil {
				return err
			}
			if err := tx.Exec(ctx,
				"INSERT INTO featgen_instances (run_id, position, name, fingerprint, snapshot) VALUES (?, ?, ?, ?, ?)",
				[]any{run.ID, i, n.Name, n.Fingerprint, data}, nil,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: save run: %w", err)
	}
	s.logger.InfoContext(ctx, "run saved", "run", run.ID, "task", task, "mode", mode, "instances", len(run.Instances))
	return run, nil
}

// Run loads the run with the given id and its instances.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	runs, err := s.runs(ctx, "SELECT id, task, mode, created_at FROM featgen_runs WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run := runs[0]
	rows := &sql.Rows{}
	if err := s.drv.Query(ctx,
		"SELECT name, fingerprint, snapshot FROM featgen_instances WHERE run_id = ? ORDER BY position",
		[]any{id}, rows,
	); err != nil {
		return nil, fmt.Errorf("storage: load run: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n    Named
			data []byte
		)
		if err := rows.Scan(&n.Name, &n.Fingerprint, &data); err != nil {
			return nil, fmt.Errorf("storage: scan instance: %w", err)
		}
		if n.Snapshot, err = DecodeSnapshot(data); err != nil {
			return nil, err
		}
		run.Instances = append(run.Instances, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: load run: %w", err)
	}
	return run, nil
}

// Runs lists the runs of a task, newest first, without their instances.
// An empty task lists every run.
func (s *Store) Runs(ctx context.Context, task string) ([]*Run, error) {
	if task == "" {
		return s.runs(ctx, "SELECT id, task, mode, created_at FROM featgen_runs ORDER BY created_at DESC, id")
	}
	return s.runs(ctx, "SELECT id, task, mode, created_at FROM featgen_runs WHERE task = ? ORDER BY created_at DESC, id", task)
}

// DeleteRun removes a run and its instances.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	var deleted int64
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		if err := tx.Exec(ctx, "DELETE FROM featgen_instances WHERE run_id = ?", []any{id}, nil); err != nil {
			return err
		}
		var res sql.Result
		if err := tx.Exec(ctx, "DELETE FROM featgen_runs WHERE id = ?", []any{id}, &res); err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("storage: delete run: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (s *Store) runs(ctx context.Context, query string, args ...any) ([]*Run, error) {
	if args == nil {
		args = []any{}
	}
	rows := &sql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		var (
			r       Run
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Task, &r.Mode, &created); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		r.Created = time.UnixMilli(created).UTC()
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	return runs, nil
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}
