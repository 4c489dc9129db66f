package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Resolver extracts a tenant identifier from an HTTP request.
type Resolver interface {
	// Resolve extracts the tenant identifier from the request.
	// Returns empty string if no tenant identifier is found.
	// Returns an error if the extraction fails.
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls the function.
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// SubdomainResolver uses the leftmost host label as the tenant
// identifier (e.g. "acme" from "acme.app.com").
type SubdomainResolver struct {
	// Suffix to strip from the host (e.g. ".saas.com"). If empty, only
	// the leftmost label is used.
	Suffix string
}

// NewSubdomainResolver creates a new subdomain resolver.
func NewSubdomainResolver(suffix string) *SubdomainResolver {
	return &SubdomainResolver{Suffix: suffix}
}

// Resolve extracts the tenant identifier from the request subdomain.
func (r *SubdomainResolver) Resolve(req *http.Request) (string, error) {
	host := stripPort(req.Host)

	// A bare domain.tld has no subdomain to read.
	if len(strings.Split(host, ".")) < 3 {
		return "", nil
	}

	if r.Suffix != "" && strings.HasSuffix(host, r.Suffix) && len(host) > len(r.Suffix) {
		host = host[:len(host)-len(r.Suffix)]
	}

	parts := strings.Split(host, ".")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil
	}

	sub := parts[0]
	if sub == "www" {
		if len(parts) < 2 {
			return "", nil
		}
		sub = parts[1]
	}
	return sub, nil
}

// DomainStore looks up domain mappings by exact hostname. The registry
// stores satisfy it.
type DomainStore interface {
	// GetDomain returns ErrDomainNotFound when the host is unmapped.
	GetDomain(ctx context.Context, host string) (*Domain, error)
}

// DomainResolver maps the exact request hostname to a tenant through
// the domain registry. A configured public host falls through to the
// public tenant instead of requiring a mapping.
type DomainResolver struct {
	Domains DomainStore
	// PublicHost is the shared application hostname, e.g. "app.com".
	PublicHost string
	// PublicTenantID is the identifier resolved for PublicHost.
	PublicTenantID string
}

// NewDomainResolver creates a custom-domain resolver backed by store.
func NewDomainResolver(store DomainStore, publicHost, publicTenantID string) *DomainResolver {
	return &DomainResolver{Domains: store, PublicHost: publicHost, PublicTenantID: publicTenantID}
}

// Resolve looks the hostname up in the domain registry. An unmapped
// host with no public fallback yields ErrTenantNotFound.
func (r *DomainResolver) Resolve(req *http.Request) (string, error) {
	if r.Domains == nil {
		return "", errors.New("domain resolver: domain store not configured")
	}
	host := stripPort(req.Host)

	if r.PublicHost != "" && strings.EqualFold(host, r.PublicHost) {
		return r.PublicTenantID, nil
	}

	d, err := r.Domains.GetDomain(req.Context(), host)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			return "", fmt.Errorf("%w: no tenant mapped to host %q", ErrTenantNotFound, host)
		}
		return "", err
	}
	return d.TenantID, nil
}

// HeaderResolver reads the tenant identifier from an HTTP header.
type HeaderResolver struct {
	// HeaderName is the header to read, defaulting to "X-Tenant-ID".
	HeaderName string
}

// NewHeaderResolver creates a new header resolver.
func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &HeaderResolver{HeaderName: headerName}
}

// Resolve extracts the tenant identifier from the configured header.
func (r *HeaderResolver) Resolve(req *http.Request) (string, error) {
	return req.Header.Get(r.HeaderName), nil
}

// CompositeResolver tries multiple resolvers in order until one yields
// a non-empty identifier.
type CompositeResolver struct {
	Resolvers []Resolver
}

// NewCompositeResolver creates a new composite resolver.
func NewCompositeResolver(resolvers ...Resolver) *CompositeResolver {
	return &CompositeResolver{Resolvers: resolvers}
}

// Resolve returns the first non-empty identifier. Errors from earlier
// resolvers are collected and reported only if no resolver succeeds.
func (c *CompositeResolver) Resolve(r *http.Request) (string, error) {
	var errs []error
	for _, resolver := range c.Resolvers {
		id, err := resolver.Resolve(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			return id, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("composite resolver: %w", errors.Join(errs...))
	}
	return "", nil
}

func stripPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port present; unbracket bare IPv6 literals.
		return strings.Trim(hostport, "[]")
	}
	return host
}
