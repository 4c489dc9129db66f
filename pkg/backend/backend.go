// Package backend implements the isolation backends: the resource
// lifecycle (create, activate, deactivate, delete) behind each
// isolation kind.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// ErrUnsupportedIsolation is returned for isolation kinds without a
// backend, currently table isolation.
var ErrUnsupportedIsolation = errors.New("unsupported isolation kind")

// CreateOptions controls resource provisioning.
type CreateOptions struct {
	// ProvisionDatabase creates the physical database and role for
	// database-isolated tenants. When false, the database is assumed to
	// exist (e.g. provisioned by infrastructure tooling).
	ProvisionDatabase bool
	// RunMigrations applies the tenant migration set after provisioning.
	RunMigrations bool
}

// Backend manages one tenant's isolated resources.
//
// Activate returns a context carrying the tenant scope, with the
// backing resources (pools, prefixes) ready for the router. Dropping
// the returned context restores the caller's previous scope.
// Deactivate releases per-tenant handles and Delete tears the resource
// down; both are idempotent against repeated calls.
type Backend interface {
	Create(ctx context.Context, opts CreateOptions) error
	Activate(ctx context.Context) (context.Context, error)
	Deactivate(ctx context.Context) error
	Delete(ctx context.Context) error
}

// Manager wires shared infrastructure into per-tenant backends.
type Manager struct {
	admin  pg.Execer     // connection to the server's maintenance DB for CREATE/DROP DATABASE
	shared *pgxpool.Pool // shared database holding tenant schemas
	pools  *pg.PoolSet   // per-tenant database pools
	cache  Cache         // shared cache client
	cfg    pg.Config
	log    *slog.Logger
}

// NewManager creates a backend manager. Any dependency may be nil when
// the matching isolation kind is unused; For returns a
// ConfigurationError if a tenant then needs it.
func NewManager(admin pg.Execer, shared *pgxpool.Pool, pools *pg.PoolSet, cache Cache, cfg pg.Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{admin: admin, shared: shared, pools: pools, cache: cache, cfg: cfg, log: log}
}

// For selects the backend matching the tenant's isolation kind.
func (m *Manager) For(t *tenant.Tenant) (Backend, error) {
	switch t.Isolation {
	case tenant.IsolationDatabase:
		if m.pools == nil {
			return nil, &tenant.ConfigurationError{Field: "pools", Reason: "database isolation requires a pool set"}
		}
		return &Database{t: t, admin: m.admin, pools: m.pools, cfg: m.cfg, log: m.log}, nil
	case tenant.IsolationSchema:
		if m.shared == nil && m.admin == nil {
			return nil, &tenant.ConfigurationError{Field: "shared", Reason: "schema isolation requires the shared database pool"}
		}
		ex := pg.Execer(m.shared)
		if m.shared == nil {
			ex = m.admin
		}
		return &Schema{t: t, ex: ex, pool: m.shared, cfg: m.cfg, log: m.log}, nil
	case tenant.IsolationCache:
		if m.cache == nil {
			return nil, &tenant.ConfigurationError{Field: "cache", Reason: "cache isolation requires a cache client"}
		}
		return &CacheBackend{t: t, cache: m.cache}, nil
	case tenant.IsolationTable:
		return nil, fmt.Errorf("%w: table isolation has no backend", ErrUnsupportedIsolation)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIsolation, t.Isolation)
	}
}
