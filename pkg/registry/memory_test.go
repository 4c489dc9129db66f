package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

func newSchemaTenant(id string) *tenant.Tenant {
	return &tenant.Tenant{ID: id, Name: id, Isolation: tenant.IsolationSchema, Active: true}
}

func TestMemoryStoreTenants(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("create assigns surrogate key and timestamps", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		tn := newSchemaTenant("acme")
		require.NoError(t, s.Create(ctx, tn))

		assert.NotEqual(t, uuid.Nil, tn.UID)
		assert.False(t, tn.CreatedAt.IsZero())
		assert.False(t, tn.UpdatedAt.IsZero())

		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, tn.UID, got.UID)
	})

	t.Run("create rejects duplicates", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))
		require.ErrorIs(t, s.Create(ctx, newSchemaTenant("acme")), registry.ErrTenantExists)
	})

	t.Run("create rejects invalid records", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		var cfgErr *tenant.ConfigurationError
		err := s.Create(ctx, &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationDatabase})
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("get unknown tenant", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		_, err := s.Get(ctx, "ghost")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))

		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		got.Name = "mutated"

		fresh, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", fresh.Name)
	})

	t.Run("config sections are copied, not aliased", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		created := &tenant.Tenant{
			ID: "acme", Name: "acme", Isolation: tenant.IsolationDatabase, Active: true,
			Config: tenant.Config{Database: &tenant.DatabaseConfig{Host: "db.internal", Name: "acme"}},
		}
		require.NoError(t, s.Create(ctx, created))

		// Mutating the caller's record after create must not reach the store.
		created.Config.Database.Host = "evil.example.com"

		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		require.NotNil(t, got.Config.Database)
		assert.Equal(t, "db.internal", got.Config.Database.Host)

		// Mutating a returned record must not reach the store either.
		got.Config.Database.Host = "also-evil.example.com"

		fresh, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "db.internal", fresh.Config.Database.Host)

		listed, err := s.List(ctx, registry.Filter{})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		listed[0].Config.Database.Host = "mutated"

		fresh, err = s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "db.internal", fresh.Config.Database.Host)
	})

	t.Run("update preserves surrogate key and creation time", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		tn := newSchemaTenant("acme")
		require.NoError(t, s.Create(ctx, tn))

		upd := newSchemaTenant("acme")
		upd.Name = "Acme Corp"
		require.NoError(t, s.Update(ctx, upd))

		assert.Equal(t, tn.UID, upd.UID)
		assert.Equal(t, tn.CreatedAt, upd.CreatedAt)

		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Name)
	})

	t.Run("update unknown tenant", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.ErrorIs(t, s.Update(ctx, newSchemaTenant("ghost")), tenant.ErrTenantNotFound)
	})

	t.Run("list sorted with isolation filter", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("beta")))
		require.NoError(t, s.Create(ctx, newSchemaTenant("alpha")))
		cacheTenant := &tenant.Tenant{ID: "gamma", Isolation: tenant.IsolationCache, Active: true}
		require.NoError(t, s.Create(ctx, cacheTenant))

		all, err := s.List(ctx, registry.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "alpha", all[0].ID)
		assert.Equal(t, "beta", all[1].ID)

		schemas, err := s.List(ctx, registry.Filter{Isolation: tenant.IsolationSchema})
		require.NoError(t, err)
		require.Len(t, schemas, 2)
	})

	t.Run("delete cascades domains", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))
		require.NoError(t, s.AddDomain(ctx, &tenant.Domain{Host: "shop.acme.com", TenantID: "acme"}))

		require.NoError(t, s.Delete(ctx, "acme"))

		_, err := s.Get(ctx, "acme")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
		_, err = s.GetDomain(ctx, "shop.acme.com")
		require.ErrorIs(t, err, tenant.ErrDomainNotFound)
	})

	t.Run("delete unknown tenant", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.ErrorIs(t, s.Delete(ctx, "ghost"), tenant.ErrTenantNotFound)
	})

	t.Run("concurrent create and read", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("tenant-%d", i)
				require.NoError(t, s.Create(ctx, newSchemaTenant(id)))
				_, err := s.Get(ctx, id)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		all, err := s.List(ctx, registry.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 50)
	})
}

func TestMemoryStoreDomains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("add and resolve domain", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))
		require.NoError(t, s.AddDomain(ctx, &tenant.Domain{Host: "Shop.Acme.COM", TenantID: "acme"}))

		d, err := s.GetDomain(ctx, "shop.acme.com")
		require.NoError(t, err)
		assert.Equal(t, "acme", d.TenantID)
		assert.Equal(t, "shop.acme.com", d.Host)

		tn, err := s.GetByDomain(ctx, "SHOP.acme.com")
		require.NoError(t, err)
		assert.Equal(t, "acme", tn.ID)
	})

	t.Run("duplicate host rejected", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))
		require.NoError(t, s.AddDomain(ctx, &tenant.Domain{Host: "shop.acme.com", TenantID: "acme"}))
		err := s.AddDomain(ctx, &tenant.Domain{Host: "shop.acme.com", TenantID: "acme"})
		require.ErrorIs(t, err, registry.ErrDomainExists)
	})

	t.Run("domain for unknown tenant rejected", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		err := s.AddDomain(ctx, &tenant.Domain{Host: "shop.acme.com", TenantID: "ghost"})
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("remove domain", func(t *testing.T) {
		t.Parallel()

		s := registry.NewMemoryStore()
		require.NoError(t, s.Create(ctx, newSchemaTenant("acme")))
		require.NoError(t, s.AddDomain(ctx, &tenant.Domain{Host: "shop.acme.com", TenantID: "acme"}))

		require.NoError(t, s.RemoveDomain(ctx, "shop.acme.com"))
		require.ErrorIs(t, s.RemoveDomain(ctx, "shop.acme.com"), tenant.ErrDomainNotFound)
	})
}
