package main

import (
	"context"
	"errors"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/logger"
	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// createTenant registers the record, provisions the isolated resources
// and maps domains. A failed provisioning rolls the record back so a
// retry starts clean. Table-isolated tenants are registered without
// provisioning: no backend exists for them yet.
func (a *app) createTenant(ctx context.Context, t *tenant.Tenant, opts backend.CreateOptions, domains []string) error {
	if err := a.store.Create(ctx, t); err != nil {
		return err
	}

	if t.Isolation != tenant.IsolationTable {
		b, err := a.backends.For(t)
		if err == nil {
			err = b.Create(ctx, opts)
		}
		if err != nil {
			if delErr := a.store.Delete(ctx, t.ID); delErr != nil {
				a.log.ErrorContext(ctx, "rollback of tenant record failed",
					logger.TenantID(t.ID), logger.Error(delErr))
			}
			return err
		}
	}

	for _, host := range domains {
		d := &tenant.Domain{Host: host, TenantID: t.ID}
		if err := a.store.AddDomain(ctx, d); err != nil && !errors.Is(err, registry.ErrDomainExists) {
			return err
		}
	}

	a.events.Publish(ctx, registry.Event{Type: registry.EventTenantCreated, TenantID: t.ID})
	return nil
}

// deleteTenant tears down the tenant's resources and removes the
// record. Teardown is idempotent, so re-running after a partial
// failure converges.
func (a *app) deleteTenant(ctx context.Context, id string, keepResources bool) error {
	t, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if !keepResources && t.Isolation != tenant.IsolationTable {
		b, err := a.backends.For(t)
		if err != nil {
			return err
		}
		if err := b.Delete(ctx); err != nil {
			return err
		}
	}

	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	a.events.Publish(ctx, registry.Event{Type: registry.EventTenantDeleted, TenantID: id})
	return nil
}
