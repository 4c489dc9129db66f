package tenant_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

func TestWithTenant(t *testing.T) {
	t.Parallel()

	t.Run("stores and retrieves tenant", func(t *testing.T) {
		t.Parallel()

		acme := &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationSchema}
		ctx := tenant.WithTenant(context.Background(), acme)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, acme, got)

		id, ok := tenant.IdentifierFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "acme", id)
	})

	t.Run("empty context has no tenant", func(t *testing.T) {
		t.Parallel()

		got, ok := tenant.FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)

		id, ok := tenant.IdentifierFromContext(context.Background())
		assert.False(t, ok)
		assert.Empty(t, id)
	})

	t.Run("inner scope shadows outer, dropping it restores", func(t *testing.T) {
		t.Parallel()

		outer := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "outer"})
		inner := tenant.WithTenant(outer, &tenant.Tenant{ID: "inner"})

		id, _ := tenant.IdentifierFromContext(inner)
		assert.Equal(t, "inner", id)

		// The outer context is untouched by the nested activation.
		id, _ = tenant.IdentifierFromContext(outer)
		assert.Equal(t, "outer", id)
	})

	t.Run("concurrent goroutines keep independent scopes", func(t *testing.T) {
		t.Parallel()

		base := context.Background()
		var wg sync.WaitGroup
		for _, id := range []string{"alpha", "beta", "gamma"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx := tenant.WithTenant(base, &tenant.Tenant{ID: id})
				for range 100 {
					got, ok := tenant.IdentifierFromContext(ctx)
					assert.True(t, ok)
					assert.Equal(t, id, got)
				}
			}()
		}
		wg.Wait()
	})
}

func TestScopeFromContext(t *testing.T) {
	t.Parallel()

	t.Run("zero scope by default", func(t *testing.T) {
		t.Parallel()

		assert.True(t, tenant.ScopeFromContext(context.Background()).IsZero())
	})

	t.Run("master scope shadows tenant scope", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "acme"})
		ctx = tenant.WithMasterScope(ctx)

		scope := tenant.ScopeFromContext(ctx)
		assert.True(t, scope.Master)
		assert.Nil(t, scope.Tenant)

		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("schema scope carries the schema name", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithSchemaScope(context.Background(), "audit")
		scope := tenant.ScopeFromContext(ctx)
		assert.Equal(t, "audit", scope.Schema)
		assert.Nil(t, scope.Tenant)
		assert.False(t, scope.IsZero())
	})
}

func TestMustFromContext(t *testing.T) {
	t.Parallel()

	t.Run("returns active tenant", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "acme"})
		assert.Equal(t, "acme", tenant.MustFromContext(ctx).ID)
	})

	t.Run("panics without tenant", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			tenant.MustFromContext(context.Background())
		})
	})
}

func TestRunAs(t *testing.T) {
	t.Parallel()

	t.Run("fn sees the tenant scope", func(t *testing.T) {
		t.Parallel()

		acme := &tenant.Tenant{ID: "acme"}
		err := tenant.RunAs(context.Background(), acme, func(ctx context.Context) error {
			got, ok := tenant.FromContext(ctx)
			require.True(t, ok)
			assert.Same(t, acme, got)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("propagates fn error, caller scope intact", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("boom")
		ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "outer"})

		err := tenant.RunAs(ctx, &tenant.Tenant{ID: "inner"}, func(context.Context) error {
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		id, _ := tenant.IdentifierFromContext(ctx)
		assert.Equal(t, "outer", id)
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := tenant.LoggerExtractor()

	attr, ok := extract(tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "acme"}))
	require.True(t, ok)
	assert.Equal(t, "tenant_id", attr.Key)
	assert.Equal(t, "acme", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}
