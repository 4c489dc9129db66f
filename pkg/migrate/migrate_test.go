package migrate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/omnitenant/pkg/migrate"
	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

func seedStore(t *testing.T, ids ...string) *registry.MemoryStore {
	t.Helper()
	s := registry.NewMemoryStore()
	for _, id := range ids {
		require.NoError(t, s.Create(context.Background(), &tenant.Tenant{
			ID: id, Isolation: tenant.IsolationSchema, Active: true,
		}))
	}
	return s
}

func TestMigratorOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("runs inside the tenant scope and publishes", func(t *testing.T) {
		t.Parallel()

		store := seedStore(t, "acme")
		var events []registry.Event
		var scopedID string

		m := migrate.New(store, migrate.RunnerFunc(func(ctx context.Context, tn *tenant.Tenant) error {
			scopedID, _ = tenant.IdentifierFromContext(ctx)
			return nil
		}), registry.PublisherFunc(func(_ context.Context, e registry.Event) {
			events = append(events, e)
		}), nil)

		require.NoError(t, m.One(ctx, "acme"))
		assert.Equal(t, "acme", scopedID)
		require.Len(t, events, 1)
		assert.Equal(t, registry.EventTenantMigrated, events[0].Type)
		assert.Equal(t, "acme", events[0].TenantID)
	})

	t.Run("fails fast and suppresses the event", func(t *testing.T) {
		t.Parallel()

		store := seedStore(t, "acme")
		sentinel := errors.New("migration broke")
		published := false

		m := migrate.New(store, migrate.RunnerFunc(func(context.Context, *tenant.Tenant) error {
			return sentinel
		}), registry.PublisherFunc(func(context.Context, registry.Event) {
			published = true
		}), nil)

		require.ErrorIs(t, m.One(ctx, "acme"), sentinel)
		assert.False(t, published)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		t.Parallel()

		m := migrate.New(seedStore(t), migrate.RunnerFunc(func(context.Context, *tenant.Tenant) error {
			return nil
		}), nil, nil)

		require.ErrorIs(t, m.One(ctx, "ghost"), tenant.ErrTenantNotFound)
	})
}

func TestMigratorAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("continues past failures and reports each outcome", func(t *testing.T) {
		t.Parallel()

		store := seedStore(t, "alpha", "beta", "gamma")
		sentinel := errors.New("beta is broken")

		m := migrate.New(store, migrate.RunnerFunc(func(_ context.Context, tn *tenant.Tenant) error {
			if tn.ID == "beta" {
				return sentinel
			}
			return nil
		}), nil, nil)

		report, err := m.All(ctx)
		require.NoError(t, err)
		require.Len(t, report.Results, 3)
		assert.Equal(t, 2, report.Succeeded())
		assert.Equal(t, 1, report.Failed())

		for _, res := range report.Results {
			if res.TenantID == "beta" {
				require.ErrorIs(t, res.Err, sentinel)
			} else {
				require.NoError(t, res.Err)
			}
		}
	})

	t.Run("publishes only for migrated tenants", func(t *testing.T) {
		t.Parallel()

		store := seedStore(t, "alpha", "beta")
		var migrated []string

		m := migrate.New(store, migrate.RunnerFunc(func(_ context.Context, tn *tenant.Tenant) error {
			if tn.ID == "beta" {
				return errors.New("boom")
			}
			return nil
		}), registry.PublisherFunc(func(_ context.Context, e registry.Event) {
			migrated = append(migrated, e.TenantID)
		}), nil)

		_, err := m.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha"}, migrated)
	})

	t.Run("empty registry yields an empty report", func(t *testing.T) {
		t.Parallel()

		m := migrate.New(seedStore(t), migrate.RunnerFunc(func(context.Context, *tenant.Tenant) error {
			return nil
		}), nil, nil)

		report, err := m.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.Results)
		assert.Zero(t, report.Failed())
	})
}

func TestGooseRunnerUnsupported(t *testing.T) {
	t.Parallel()

	r := migrate.NewGooseRunner(nil, pg.Config{}, nil)

	t.Run("cache tenants have nothing to migrate", func(t *testing.T) {
		t.Parallel()

		err := r.Run(context.Background(), &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationCache})
		require.NoError(t, err)
	})

	t.Run("schema tenant without shared pool", func(t *testing.T) {
		t.Parallel()

		var cfgErr *tenant.ConfigurationError
		err := r.Run(context.Background(), &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationSchema})
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("database tenant without connection config", func(t *testing.T) {
		t.Parallel()

		var cfgErr *tenant.ConfigurationError
		err := r.Run(context.Background(), &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationDatabase})
		require.ErrorAs(t, err, &cfgErr)
	})
}
