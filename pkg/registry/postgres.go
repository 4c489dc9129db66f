package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// PostgresStore keeps tenant and domain records in the master database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps the master connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the registry tables when they are missing. The
// registry always lives in the master database, never in a tenant's.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tenants (
	uid        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	id         TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	isolation  TEXT NOT NULL,
	config     JSONB NOT NULL DEFAULT '{}',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tenant_domains (
	uid        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	host       TEXT NOT NULL UNIQUE,
	tenant_id  TEXT NOT NULL REFERENCES tenants (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

const tenantColumns = "uid, id, name, isolation, config, active, created_at, updated_at"

func (s *PostgresStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id)
	return scanTenant(row)
}

func (s *PostgresStore) GetByIdentifier(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.Get(ctx, id)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*tenant.Tenant, error) {
	query := "SELECT " + tenantColumns + " FROM tenants"
	var args []any
	if f.Isolation != "" {
		query += " WHERE isolation = $1"
		args = append(args, string(f.Isolation))
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, t *tenant.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tenant config: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, name, isolation, config, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING uid, created_at, updated_at`,
		t.ID, t.Name, string(t.Isolation), cfg, t.Active)
	if err := row.Scan(&t.UID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrTenantExists
		}
		return fmt.Errorf("create tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *tenant.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tenant config: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE tenants
		SET name = $2, isolation = $3, config = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, string(t.Isolation), cfg, t.Active)
	if err := row.Scan(&t.UpdatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return tenant.ErrTenantNotFound
		}
		return fmt.Errorf("update tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tenants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (s *PostgresStore) GetDomain(ctx context.Context, host string) (*tenant.Domain, error) {
	d := &tenant.Domain{}
	row := s.pool.QueryRow(ctx,
		"SELECT uid, host, tenant_id, created_at FROM tenant_domains WHERE host = $1",
		strings.ToLower(host))
	if err := row.Scan(&d.UID, &d.Host, &d.TenantID, &d.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrDomainNotFound
		}
		return nil, fmt.Errorf("get domain %s: %w", host, err)
	}
	return d, nil
}

func (s *PostgresStore) GetByDomain(ctx context.Context, host string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT t.uid, t.id, t.name, t.isolation, t.config, t.active, t.created_at, t.updated_at
		FROM tenants t
		JOIN tenant_domains d ON d.tenant_id = t.id
		WHERE d.host = $1`,
		strings.ToLower(host))
	t, err := scanTenant(row)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, tenant.ErrDomainNotFound
	}
	return t, err
}

func (s *PostgresStore) AddDomain(ctx context.Context, d *tenant.Domain) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tenant_domains (host, tenant_id)
		VALUES ($1, $2)
		RETURNING uid, created_at`,
		strings.ToLower(d.Host), d.TenantID)
	if err := row.Scan(&d.UID, &d.CreatedAt); err != nil {
		switch {
		case pg.IsDuplicateKeyError(err):
			return ErrDomainExists
		case pg.IsForeignKeyViolationError(err):
			return tenant.ErrTenantNotFound
		}
		return fmt.Errorf("add domain %s: %w", d.Host, err)
	}
	d.Host = strings.ToLower(d.Host)
	return nil
}

func (s *PostgresStore) RemoveDomain(ctx context.Context, host string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM tenant_domains WHERE host = $1", strings.ToLower(host))
	if err != nil {
		return fmt.Errorf("remove domain %s: %w", host, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrDomainNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*tenant.Tenant, error) {
	t := &tenant.Tenant{}
	var isolation string
	var cfg []byte
	if err := row.Scan(&t.UID, &t.ID, &t.Name, &isolation, &cfg, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.Isolation = tenant.Isolation(isolation)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &t.Config); err != nil {
			return nil, fmt.Errorf("decode config for tenant %s: %w", t.ID, err)
		}
	}
	return t, nil
}
