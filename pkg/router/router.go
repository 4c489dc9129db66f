// Package router directs every data operation to the resources of the
// scope active on the calling context: a tenant's dedicated database,
// the shared database under a tenant schema, a prefixed cache view, or
// the master resources when no tenant is active.
package router

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// MasterAlias names the shared/master database target.
const MasterAlias = "master"

// Target is the routing decision for one scope: which database alias,
// which schema on its search_path, and which cache key prefix.
type Target struct {
	Alias       string
	Schema      string
	CachePrefix string
}

// TargetFor computes the routing decision for the scope active on ctx.
// It reads the context at call time, every time; decisions are never
// cached, so a stale scope cannot leak between operations.
func TargetFor(ctx context.Context, defaultSchema string) Target {
	scope := tenant.ScopeFromContext(ctx)

	switch {
	case scope.Tenant != nil:
		t := scope.Tenant
		switch t.Isolation {
		case tenant.IsolationDatabase:
			return Target{Alias: t.ID, Schema: defaultSchema}
		case tenant.IsolationSchema:
			return Target{Alias: MasterAlias, Schema: t.SchemaName()}
		case tenant.IsolationCache:
			return Target{Alias: MasterAlias, Schema: defaultSchema, CachePrefix: backend.PrefixFor(t)}
		default:
			// Table isolation and anything unknown share the master
			// database; row scoping is the caller's concern.
			return Target{Alias: MasterAlias, Schema: defaultSchema}
		}
	case scope.Schema != "":
		return Target{Alias: MasterAlias, Schema: scope.Schema}
	default:
		// Master scope, explicit or implicit.
		return Target{Alias: MasterAlias, Schema: defaultSchema}
	}
}

// Option configures the router.
type Option func(*Router)

// WithDefaultSchema overrides the schema used for master scope,
// normally "public".
func WithDefaultSchema(name string) Option {
	return func(r *Router) {
		if name != "" {
			r.defaultSchema = name
		}
	}
}

// Router resolves the active scope to concrete resources.
type Router struct {
	master        *pgxpool.Pool
	pools         *pg.PoolSet
	cache         backend.Cache
	defaultSchema string
}

// New creates a router over the master pool, the per-tenant pool set
// and the shared cache. pools and cache may be nil when the matching
// isolation kinds are unused.
func New(master *pgxpool.Pool, pools *pg.PoolSet, cache backend.Cache, opts ...Option) *Router {
	r := &Router{master: master, pools: pools, cache: cache, defaultSchema: "public"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pool returns the connection pool for the active scope: the tenant's
// dedicated pool for database-isolated tenants (opened lazily from the
// tenant config), the master pool otherwise.
func (r *Router) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	scope := tenant.ScopeFromContext(ctx)
	t := scope.Tenant
	if t == nil || t.Isolation != tenant.IsolationDatabase {
		return r.master, nil
	}

	if r.pools == nil {
		return nil, &tenant.ConfigurationError{Field: "pools", Reason: "database isolation requires a pool set"}
	}
	if t.Config.Database == nil {
		return nil, &tenant.ConfigurationError{Field: "config.database", Reason: "database isolation requires connection parameters"}
	}
	pool, err := r.pools.Open(ctx, t.ID, t.Config.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("route to tenant %s: %w", t.ID, err)
	}
	return pool, nil
}

// Acquire checks a connection out of the routed pool with the scope's
// schema on the search_path. The returned release func restores the
// default search_path before returning the connection to the pool, so
// a pooled connection can never carry a tenant's schema into the next
// checkout.
func (r *Router) Acquire(ctx context.Context) (*pgxpool.Conn, func(), error) {
	target := TargetFor(ctx, r.defaultSchema)

	pool, err := r.Pool(ctx)
	if err != nil {
		return nil, nil, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection for %s: %w", target.Alias, err)
	}

	if target.Schema == r.defaultSchema {
		return conn, conn.Release, nil
	}
	if _, err := conn.Exec(ctx, "SET search_path TO "+pg.QuoteIdent(target.Schema)); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("set search_path to %s: %w", target.Schema, err)
	}
	release := func() {
		// Best effort: a failed reset must still return the connection.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SET search_path TO "+pg.QuoteIdent(r.defaultSchema))
		conn.Release()
	}
	return conn, release, nil
}

// Cache returns the cache view for the active scope: a key-prefixed
// wrapper for cache-isolated tenants, the shared client otherwise.
func (r *Router) Cache(ctx context.Context) backend.Cache {
	target := TargetFor(ctx, r.defaultSchema)
	if target.CachePrefix == "" || r.cache == nil {
		return r.cache
	}
	return backend.NewPrefixed(r.cache, target.CachePrefix)
}
