// Package migrate runs tenant schema migrations: one tenant fail-fast,
// or the whole fleet sequentially with a per-tenant report.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// Registry is the slice of the tenant registry the migrator needs.
type Registry interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
	List(ctx context.Context, f registry.Filter) ([]*tenant.Tenant, error)
}

// Runner applies the migration set to one tenant's target. The default
// implementation routes through goose; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, t *tenant.Tenant) error
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context, t *tenant.Tenant) error

func (f RunnerFunc) Run(ctx context.Context, t *tenant.Tenant) error { return f(ctx, t) }

// GooseRunner migrates database-isolated tenants against their own
// database and schema-isolated tenants inside their schema on the
// shared pool. Cache tenants have no schema to migrate.
type GooseRunner struct {
	shared *pgxpool.Pool
	cfg    pg.Config
	log    *slog.Logger
}

// NewGooseRunner builds the default runner.
func NewGooseRunner(shared *pgxpool.Pool, cfg pg.Config, log *slog.Logger) *GooseRunner {
	if log == nil {
		log = slog.Default()
	}
	return &GooseRunner{shared: shared, cfg: cfg, log: log}
}

func (r *GooseRunner) Run(ctx context.Context, t *tenant.Tenant) error {
	switch t.Isolation {
	case tenant.IsolationDatabase:
		if t.Config.Database == nil {
			return &tenant.ConfigurationError{Field: "config.database", Reason: "database isolation requires connection parameters"}
		}
		return pg.MigrateDSN(ctx, t.Config.Database.DSN(), r.cfg, "", r.log)
	case tenant.IsolationSchema:
		if r.shared == nil {
			return &tenant.ConfigurationError{Field: "shared", Reason: "schema migrations require the shared database pool"}
		}
		return pg.Migrate(ctx, r.shared, r.cfg, t.SchemaName(), r.log)
	case tenant.IsolationCache:
		// Nothing to migrate for a cache namespace.
		return nil
	default:
		return fmt.Errorf("%w: %q", backend.ErrUnsupportedIsolation, t.Isolation)
	}
}

// Result is the outcome of migrating a single tenant.
type Result struct {
	TenantID string
	Err      error
}

// Report aggregates the outcomes of a migrate-all run.
type Report struct {
	Results []Result
}

// Succeeded returns how many tenants migrated cleanly.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns how many tenants failed.
func (r *Report) Failed() int { return len(r.Results) - r.Succeeded() }

// Migrator orchestrates tenant migrations over the registry.
type Migrator struct {
	reg    Registry
	runner Runner
	events registry.Publisher
	log    *slog.Logger
}

// New creates a migrator. events may be nil.
func New(reg Registry, runner Runner, events registry.Publisher, log *slog.Logger) *Migrator {
	if events == nil {
		events = registry.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{reg: reg, runner: runner, events: events, log: log}
}

// One migrates a single tenant inside its scope and fails fast,
// surfacing the error to the caller.
func (m *Migrator) One(ctx context.Context, id string) error {
	t, err := m.reg.Get(ctx, id)
	if err != nil {
		return err
	}

	m.log.InfoContext(ctx, "migrating tenant", slog.String("tenant_id", t.ID))
	if err := tenant.RunAs(ctx, t, func(ctx context.Context) error {
		return m.runner.Run(ctx, t)
	}); err != nil {
		return fmt.Errorf("migrate tenant %s: %w", t.ID, err)
	}

	m.events.Publish(ctx, registry.Event{Type: registry.EventTenantMigrated, TenantID: t.ID})
	return nil
}

// All migrates every registered tenant sequentially. One tenant's
// failure never aborts the batch; the report carries each tenant's
// outcome. The returned error is non-nil only when listing fails.
func (m *Migrator) All(ctx context.Context) (*Report, error) {
	tenants, err := m.reg.List(ctx, registry.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	report := &Report{Results: make([]Result, 0, len(tenants))}
	for _, t := range tenants {
		err := tenant.RunAs(ctx, t, func(ctx context.Context) error {
			return m.runner.Run(ctx, t)
		})
		if err != nil {
			m.log.ErrorContext(ctx, "tenant migration failed",
				slog.String("tenant_id", t.ID), slog.Any("error", err))
		} else {
			m.events.Publish(ctx, registry.Event{Type: registry.EventTenantMigrated, TenantID: t.ID})
		}
		report.Results = append(report.Results, Result{TenantID: t.ID, Err: err})
	}
	return report, nil
}
