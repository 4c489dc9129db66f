package backend

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// Schema is the schema-per-tenant backend: all tenants share one
// PostgreSQL database, each inside its own schema. Isolation comes
// from the search_path the router sets when a tenant scope is active.
type Schema struct {
	t    *tenant.Tenant
	ex   pg.Execer
	pool *pgxpool.Pool // shared pool, used for migrations; may equal ex
	cfg  pg.Config
	log  *slog.Logger
}

var _ Backend = (*Schema)(nil)

// NewSchema builds a schema backend for t on the shared database.
func NewSchema(t *tenant.Tenant, ex pg.Execer, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) *Schema {
	if log == nil {
		log = slog.Default()
	}
	return &Schema{t: t, ex: ex, pool: pool, cfg: cfg, log: log}
}

// Create issues CREATE SCHEMA IF NOT EXISTS and optionally migrates
// inside the new schema. Safe to call repeatedly.
func (b *Schema) Create(ctx context.Context, opts CreateOptions) error {
	name := b.t.SchemaName()
	if err := pg.CreateSchema(ctx, b.ex, name); err != nil {
		return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "create schema", Err: err}
	}
	b.log.InfoContext(ctx, "tenant schema ensured",
		slog.String("tenant_id", b.t.ID), slog.String("schema", name))

	if opts.RunMigrations {
		if b.pool == nil {
			return &tenant.ConfigurationError{Field: "pool", Reason: "schema migrations require the shared database pool"}
		}
		if err := pg.Migrate(ctx, b.pool, b.cfg, name, b.log); err != nil {
			return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "migrate", Err: err}
		}
	}
	return nil
}

// Activate returns a context scoped to the tenant; the router resolves
// it to the shared pool with the tenant's schema on the search_path.
func (b *Schema) Activate(ctx context.Context) (context.Context, error) {
	return tenant.WithTenant(ctx, b.t), nil
}

// Deactivate is a no-op: schema tenants hold no per-tenant handles.
func (b *Schema) Deactivate(_ context.Context) error { return nil }

// Delete drops the tenant's schema with everything in it. Dropping an
// absent schema is a no-op.
func (b *Schema) Delete(ctx context.Context) error {
	if err := pg.DropSchema(ctx, b.ex, b.t.SchemaName()); err != nil {
		return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "drop schema", Err: err}
	}
	return nil
}
