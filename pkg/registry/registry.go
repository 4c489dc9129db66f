package registry

import (
	"context"
	"errors"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var (
	// ErrTenantExists is returned when creating a tenant whose
	// identifier is already registered.
	ErrTenantExists = errors.New("tenant already exists")

	// ErrDomainExists is returned when mapping a hostname that is
	// already mapped.
	ErrDomainExists = errors.New("domain already exists")
)

// Filter narrows List results. The zero value matches every tenant.
type Filter struct {
	// Isolation keeps only tenants of the given kind when non-empty.
	Isolation tenant.Isolation
}

// Store is the durable registry of tenants and domain mappings, living
// in the master scope. Implementations must be safe for concurrent
// use; reads may not observe torn writes.
//
// Store satisfies tenant.Provider and tenant.DomainStore, so it plugs
// straight into the resolution middleware.
type Store interface {
	// Get returns tenant.ErrTenantNotFound when no tenant matches id.
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
	// GetByIdentifier is Get under the name tenant.Provider expects.
	GetByIdentifier(ctx context.Context, id string) (*tenant.Tenant, error)
	// List returns tenants matching the filter, ordered by identifier.
	List(ctx context.Context, f Filter) ([]*tenant.Tenant, error)
	// Create registers a new tenant. Returns ErrTenantExists on
	// identifier collision.
	Create(ctx context.Context, t *tenant.Tenant) error
	// Update replaces the stored record for t.ID.
	Update(ctx context.Context, t *tenant.Tenant) error
	// Delete removes the tenant record and its domain mappings.
	// Deleting an absent tenant returns tenant.ErrTenantNotFound.
	Delete(ctx context.Context, id string) error

	// GetDomain returns tenant.ErrDomainNotFound for unmapped hosts.
	GetDomain(ctx context.Context, host string) (*tenant.Domain, error)
	// GetByDomain resolves a hostname straight to its tenant.
	GetByDomain(ctx context.Context, host string) (*tenant.Tenant, error)
	// AddDomain maps a hostname to a tenant.
	AddDomain(ctx context.Context, d *tenant.Domain) error
	// RemoveDomain unmaps a hostname. Removing an absent mapping
	// returns tenant.ErrDomainNotFound.
	RemoveDomain(ctx context.Context, host string) error
}
