package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// sessionExecer is the slice of *sql.DB the search_path pinning needs.
type sessionExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// pinSearchPath sets schema on the session and returns a release func
// that resets it. The bridged handle borrows its connection from the
// shared pool and hands it back alive on close, so a pinned search_path
// must never ride back into the pool.
func pinSearchPath(ctx context.Context, db sessionExecer, schema string, log logger) (func(), error) {
	if _, err := db.ExecContext(ctx, "SET search_path TO "+QuoteIdent(schema)); err != nil {
		return nil, err
	}
	return func() {
		if _, err := db.ExecContext(context.WithoutCancel(ctx), "RESET search_path"); err != nil {
			log.ErrorContext(ctx, "failed to reset search_path after migration", "error", err)
		}
	}, nil
}

// Migrate applies schema migrations to the pool's database using goose.
// searchPath, when non-empty, pins the session search_path so the same
// migration set runs inside a tenant's schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, searchPath string, log logger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationPathNotProvided)
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	// goose only speaks database/sql, so bridge the pgx pool.
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration db handle", "error", err)
		}
	}()

	if searchPath != "" {
		// Limit the bridged handle to a single connection so the
		// search_path set here governs every migration statement.
		db.SetMaxOpenConns(1)
		reset, err := pinSearchPath(ctx, db, searchPath, log)
		if err != nil {
			return errors.Join(ErrFailedToApplyMigrations, err)
		}
		// Runs before the db.Close deferred above, while the pinned
		// session is still checked out.
		defer reset()
	}

	goose.SetLogger(newSlogAdapter(ctx, log))
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// MigrateDSN connects to dsn, migrates, and disconnects. Used for
// tenant databases that have no long-lived pool yet.
func MigrateDSN(ctx context.Context, dsn string, cfg Config, searchPath string, log logger) error {
	pool, err := Connect(ctx, cfg.WithConnectionString(dsn))
	if err != nil {
		return err
	}
	defer pool.Close()
	return Migrate(ctx, pool, cfg, searchPath, log)
}

// migrateSlogAdapter routes goose's Printf-style logging through the
// structured logger.
type migrateSlogAdapter struct {
	ctx context.Context
	log logger
}

func newSlogAdapter(ctx context.Context, log logger) goose.Logger {
	return &migrateSlogAdapter{ctx: ctx, log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(a.ctx, fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(a.ctx, fmt.Sprintf(format, v...))
}
