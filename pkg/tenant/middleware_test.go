package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

type fakeProvider struct {
	tenants map[string]*tenant.Tenant
	calls   atomic.Int64
}

func (p *fakeProvider) GetByIdentifier(_ context.Context, identifier string) (*tenant.Tenant, error) {
	p.calls.Add(1)
	t, ok := p.tenants[identifier]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

func headerResolver() tenant.Resolver {
	return tenant.NewHeaderResolver("X-Tenant-ID")
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	acme := &tenant.Tenant{ID: "acme", Isolation: tenant.IsolationSchema, Active: true}
	dormant := &tenant.Tenant{ID: "dormant", Isolation: tenant.IsolationSchema, Active: false}

	newProvider := func() *fakeProvider {
		return &fakeProvider{tenants: map[string]*tenant.Tenant{
			"acme":    acme,
			"dormant": dormant,
		}}
	}

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := tenant.IdentifierFromContext(r.Context()); ok {
			w.Write([]byte(id))
			return
		}
		w.Write([]byte("master"))
	})

	t.Run("resolved tenant lands on request context", func(t *testing.T) {
		t.Parallel()

		h := tenant.Middleware(headerResolver(), newProvider())(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req.Header.Set("X-Tenant-ID", "acme")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "acme", rec.Body.String())
	})

	t.Run("no identifier proceeds in master scope", func(t *testing.T) {
		t.Parallel()

		h := tenant.Middleware(headerResolver(), newProvider())(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "master", rec.Body.String())
	})

	t.Run("unknown tenant is a 404", func(t *testing.T) {
		t.Parallel()

		h := tenant.Middleware(headerResolver(), newProvider())(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req.Header.Set("X-Tenant-ID", "ghost")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("inactive tenant is a 403", func(t *testing.T) {
		t.Parallel()

		h := tenant.Middleware(headerResolver(), newProvider())(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req.Header.Set("X-Tenant-ID", "dormant")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("inactive tenant allowed when not required", func(t *testing.T) {
		t.Parallel()

		h := tenant.Middleware(headerResolver(), newProvider(),
			tenant.WithRequireActive(false))(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req.Header.Set("X-Tenant-ID", "dormant")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dormant", rec.Body.String())
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()

		provider := newProvider()
		h := tenant.Middleware(headerResolver(), provider,
			tenant.WithSkipPaths([]string{"/health"}))(echo)
		req := httptest.NewRequest("GET", "http://saas.com/health", nil)
		req.Header.Set("X-Tenant-ID", "acme")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, "master", rec.Body.String())
		assert.Zero(t, provider.calls.Load())
	})

	t.Run("repeat lookups are served from cache", func(t *testing.T) {
		t.Parallel()

		provider := newProvider()
		h := tenant.Middleware(headerResolver(), provider)(echo)

		for range 3 {
			req := httptest.NewRequest("GET", "http://saas.com/", nil)
			req.Header.Set("X-Tenant-ID", "acme")
			h.ServeHTTP(httptest.NewRecorder(), req)
		}

		assert.Equal(t, int64(1), provider.calls.Load())
	})

	t.Run("custom error handler receives resolution failures", func(t *testing.T) {
		t.Parallel()

		var got error
		h := tenant.Middleware(headerResolver(), newProvider(),
			tenant.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				got = err
				w.WriteHeader(http.StatusTeapot)
			}))(echo)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req.Header.Set("X-Tenant-ID", "ghost")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		require.ErrorIs(t, got, tenant.ErrTenantNotFound)
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("passes with tenant scope", func(t *testing.T) {
		t.Parallel()

		h := tenant.RequireTenant(nil)(next)
		req := httptest.NewRequest("GET", "http://saas.com/", nil)
		req = req.WithContext(tenant.WithTenant(req.Context(), &tenant.Tenant{ID: "acme"}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejects master scope", func(t *testing.T) {
		t.Parallel()

		h := tenant.RequireTenant(nil)(next)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest("GET", "http://saas.com/", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
