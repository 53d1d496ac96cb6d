package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"deligma/pkg/config"

	_ "github.com/lib/pq"
)

// Runner executes single statements, either on the pool or inside a session.
type Runner interface {
	// Exec runs a statement and reports the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a scoped transaction handed to WithSession callbacks.
type Session interface {
	Runner
}

// Gateway is the connection and transaction provider used by the stores.
type Gateway interface {
	Runner
	// WithSession runs fn in one transaction. The transaction commits only
	// when fn returns nil and is rolled back on error or panic.
	WithSession(ctx context.Context, fn func(Session) error) error
	Ping(ctx context.Context) error
}

// DB is the postgres-backed Gateway.
type DB struct {
	db     *sql.DB
	tracer trace.Tracer
}

// Open connects to postgres with the configured pool limits.
func Open(cfg config.DBConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return New(db), nil
}

// New wraps an existing pool.
func New(db *sql.DB) *DB {
	return &DB{
		db:     db,
		tracer: otel.Tracer("deligma/persistence"),
	}
}

func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(ctx, d.db, query, args...)
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *DB) WithSession(ctx context.Context, fn func(Session) error) (err error) {
	ctx, span := d.tracer.Start(ctx, "persistence.session")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			span.SetAttributes(attribute.Bool("session.panicked", true))
			panic(p)
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(&session{tx: tx}); err != nil {
		span.SetAttributes(attribute.Bool("session.rolled_back", true))
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

type session struct {
	tx *sql.Tx
}

func (s *session) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(ctx, s.tx, query, args...)
}

func (s *session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *session) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAffected(ctx context.Context, e execer, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
