package backend

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// Database is the database-per-tenant backend: every tenant owns a
// physical database, reached through a dedicated pool in the pool set.
type Database struct {
	t     *tenant.Tenant
	admin pg.Execer
	pools *pg.PoolSet
	cfg   pg.Config
	log   *slog.Logger
}

var _ Backend = (*Database)(nil)

// NewDatabase builds a database backend for t. admin must be connected
// to the server's maintenance database when provisioning is wanted.
func NewDatabase(t *tenant.Tenant, admin pg.Execer, pools *pg.PoolSet, cfg pg.Config, log *slog.Logger) *Database {
	if log == nil {
		log = slog.Default()
	}
	return &Database{t: t, admin: admin, pools: pools, cfg: cfg, log: log}
}

// Create provisions the tenant's database and role, then optionally
// migrates it. Already-existing databases and roles are treated as
// provisioned, so re-running create converges instead of failing.
func (b *Database) Create(ctx context.Context, opts CreateOptions) error {
	dbCfg := b.t.Config.Database
	if dbCfg == nil {
		return &tenant.ConfigurationError{Field: "config.database", Reason: "database isolation requires connection parameters"}
	}

	if opts.ProvisionDatabase {
		if b.admin == nil {
			return &tenant.ConfigurationError{Field: "admin", Reason: "database provisioning requires an admin connection"}
		}
		if dbCfg.User != "" {
			if err := pg.CreateRole(ctx, b.admin, dbCfg.User, dbCfg.Password); err != nil {
				return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "create role", Err: err}
			}
		}
		if err := pg.CreateDatabase(ctx, b.admin, dbCfg.Name, dbCfg.User); err != nil {
			return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "create database", Err: err}
		}
		b.log.InfoContext(ctx, "tenant database provisioned",
			slog.String("tenant_id", b.t.ID), slog.String("database", dbCfg.Name))
	}

	if opts.RunMigrations {
		if err := pg.MigrateDSN(ctx, dbCfg.DSN(), b.cfg, "", b.log); err != nil {
			return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "migrate", Err: err}
		}
	}
	return nil
}

// Activate opens the tenant's pool if needed and returns a context
// scoped to the tenant. The router resolves that scope to the pool on
// every data operation.
func (b *Database) Activate(ctx context.Context) (context.Context, error) {
	if b.t.Config.Database == nil {
		return nil, &tenant.ConfigurationError{Field: "config.database", Reason: "database isolation requires connection parameters"}
	}
	if _, err := b.pools.Open(ctx, b.t.ID, b.t.Config.Database.DSN()); err != nil {
		return nil, &tenant.ProvisioningError{TenantID: b.t.ID, Op: "open pool", Err: err}
	}
	return tenant.WithTenant(ctx, b.t), nil
}

// Deactivate closes the tenant's pool. Contexts derived by Activate
// simply expire with their request; closing an unopened pool is a no-op.
func (b *Database) Deactivate(_ context.Context) error {
	b.pools.Close(b.t.ID)
	return nil
}

// Delete closes the tenant's pool and drops its database. Repeated
// calls are no-ops once the database is gone.
func (b *Database) Delete(ctx context.Context) error {
	b.pools.Close(b.t.ID)

	dbCfg := b.t.Config.Database
	if dbCfg == nil || dbCfg.Name == "" {
		return nil
	}
	if b.admin == nil {
		return &tenant.ConfigurationError{Field: "admin", Reason: "database teardown requires an admin connection"}
	}
	if err := pg.DropDatabase(ctx, b.admin, dbCfg.Name); err != nil {
		return &tenant.ProvisioningError{TenantID: b.t.ID, Op: "drop database", Err: err}
	}
	return nil
}
