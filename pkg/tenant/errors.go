package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound is returned when a tenant cannot be found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDomainNotFound is returned when a hostname has no domain mapping.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrInvalidIdentifier is returned when the identifier format is invalid.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInactiveTenant is returned when trying to use an inactive tenant.
	ErrInactiveTenant = errors.New("tenant is inactive")
)

// ConfigurationError reports missing or invalid isolation configuration.
// It is fatal at startup or at tenant-create time and is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tenant configuration error: %s: %s", e.Field, e.Reason)
}

// ProvisioningError reports a failed resource create/teardown for one
// tenant. Batch operations report it per tenant and keep going.
type ProvisioningError struct {
	TenantID string
	Op       string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s for tenant %s: %s", e.Op, e.TenantID, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
