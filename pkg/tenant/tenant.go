package tenant

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Isolation is the strategy separating one tenant's data from another's.
type Isolation string

const (
	// IsolationDatabase gives the tenant a dedicated physical database.
	IsolationDatabase Isolation = "database"
	// IsolationSchema gives the tenant a dedicated PostgreSQL schema
	// inside the shared database.
	IsolationSchema Isolation = "schema"
	// IsolationTable is reserved for row-scoped isolation inside shared
	// tables. No backend implements it yet; records may be created with
	// it but cannot be provisioned or activated.
	IsolationTable Isolation = "table"
	// IsolationCache namespaces the tenant inside a shared cache by key
	// prefix. No database resources are involved.
	IsolationCache Isolation = "cache"
)

// ParseIsolation converts user input into an Isolation value.
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(strings.ToLower(strings.TrimSpace(s))) {
	case IsolationDatabase:
		return IsolationDatabase, nil
	case IsolationSchema:
		return IsolationSchema, nil
	case IsolationTable:
		return IsolationTable, nil
	case IsolationCache:
		return IsolationCache, nil
	default:
		return "", fmt.Errorf("%w: unknown isolation kind %q", ErrInvalidIdentifier, s)
	}
}

// Tenant is an isolated customer unit. ID is the stable slug used in
// hostnames, cache keys and CLI arguments; UID is the surrogate key in
// the master store.
type Tenant struct {
	UID       uuid.UUID `json:"uid"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Isolation Isolation `json:"isolation"`
	Config    Config    `json:"config"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config is the isolation-specific configuration blob stored alongside
// the tenant record. Only the section matching the isolation kind is
// consulted.
type Config struct {
	Database *DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	Schema   *SchemaConfig   `json:"schema,omitempty" yaml:"schema,omitempty"`
	Cache    *CacheConfig    `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// Clone deep-copies the config so two records never alias the same
// isolation section.
func (c Config) Clone() Config {
	if c.Database != nil {
		db := *c.Database
		c.Database = &db
	}
	if c.Schema != nil {
		s := *c.Schema
		c.Schema = &s
	}
	if c.Cache != nil {
		cache := *c.Cache
		c.Cache = &cache
	}
	return c
}

// DatabaseConfig locates the tenant's dedicated database.
type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Name     string `json:"name" yaml:"name"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty"`
}

// DSN renders the config as a postgres connection URL.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.port()),
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c DatabaseConfig) port() int {
	if c.Port == 0 {
		return 5432
	}
	return c.Port
}

// SchemaConfig names the tenant's schema in the shared database.
type SchemaConfig struct {
	Name string `json:"name" yaml:"name"`
}

// CacheConfig overrides the key prefix used for cache isolation.
type CacheConfig struct {
	Prefix string `json:"prefix" yaml:"prefix"`
}

// SchemaName returns the configured schema name, falling back to the
// tenant identifier.
func (t *Tenant) SchemaName() string {
	if t.Config.Schema != nil && t.Config.Schema.Name != "" {
		return t.Config.Schema.Name
	}
	return t.ID
}

// CachePrefix returns the configured cache key prefix, falling back to
// the tenant identifier.
func (t *Tenant) CachePrefix() string {
	if t.Config.Cache != nil && t.Config.Cache.Prefix != "" {
		return t.Config.Cache.Prefix
	}
	return t.ID
}

// Validate checks that the record carries the configuration its
// isolation kind needs. Violations are ConfigurationErrors and are
// fatal at create time.
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return &ConfigurationError{Field: "id", Reason: "tenant identifier is required"}
	}
	if strings.ContainsAny(t.ID, " /\\\"'") {
		return &ConfigurationError{Field: "id", Reason: "tenant identifier must be a slug"}
	}
	switch t.Isolation {
	case IsolationDatabase:
		if t.Config.Database == nil {
			return &ConfigurationError{Field: "config.database", Reason: "database isolation requires connection parameters"}
		}
		if t.Config.Database.Name == "" {
			return &ConfigurationError{Field: "config.database.name", Reason: "database name is required"}
		}
	case IsolationSchema, IsolationCache, IsolationTable:
		// Schema and cache names fall back to the tenant identifier,
		// nothing is mandatory beyond the slug itself.
	default:
		return &ConfigurationError{Field: "isolation", Reason: fmt.Sprintf("unknown isolation kind %q", t.Isolation)}
	}
	return nil
}

// Domain maps an external hostname to a tenant. Many domains may point
// at the same tenant; domains are created and deleted independently of
// the tenant lifecycle.
type Domain struct {
	UID       uuid.UUID `json:"uid"`
	Host      string    `json:"host"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider loads tenant records by identifier. The registry store
// satisfies it; custom implementations can back the middleware with
// anything else.
type Provider interface {
	// GetByIdentifier returns ErrTenantNotFound when no tenant matches.
	GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error)
}
