package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// MemoryStore is an in-memory Store for tests, demos and single-process
// setups. Reads take copies under a read lock, so in-flight readers are
// never affected by concurrent writes.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant // keyed by identifier
	domains map[string]*tenant.Domain // keyed by lowercase host
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*tenant.Tenant),
		domains: make(map[string]*tenant.Domain),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return cloneTenant(t), nil
}

func (s *MemoryStore) GetByIdentifier(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.Get(ctx, id)
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if f.Isolation != "" && t.Isolation != f.Isolation {
			continue
		}
		out = append(out, cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, t *tenant.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; ok {
		return ErrTenantExists
	}
	cp := cloneTenant(t)
	if cp.UID == uuid.Nil {
		cp.UID = uuid.New()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.tenants[cp.ID] = cp

	// Report generated fields back to the caller.
	*t = *cloneTenant(cp)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, t *tenant.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.tenants[t.ID]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	cp := cloneTenant(t)
	cp.UID = prev.UID
	cp.CreatedAt = prev.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.tenants[cp.ID] = cp
	*t = *cloneTenant(cp)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[id]; !ok {
		return tenant.ErrTenantNotFound
	}
	delete(s.tenants, id)
	for host, d := range s.domains {
		if d.TenantID == id {
			delete(s.domains, host)
		}
	}
	return nil
}

// cloneTenant copies the record including its config sections, so the
// store and its callers never share mutable state.
func cloneTenant(t *tenant.Tenant) *tenant.Tenant {
	cp := *t
	cp.Config = t.Config.Clone()
	return &cp
}

func (s *MemoryStore) GetDomain(_ context.Context, host string) (*tenant.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains[strings.ToLower(host)]
	if !ok {
		return nil, tenant.ErrDomainNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) GetByDomain(ctx context.Context, host string) (*tenant.Tenant, error) {
	d, err := s.GetDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, d.TenantID)
}

func (s *MemoryStore) AddDomain(_ context.Context, d *tenant.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host := strings.ToLower(d.Host)
	if _, ok := s.domains[host]; ok {
		return ErrDomainExists
	}
	if _, ok := s.tenants[d.TenantID]; !ok {
		return tenant.ErrTenantNotFound
	}
	cp := *d
	cp.Host = host
	if cp.UID == uuid.Nil {
		cp.UID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.domains[host] = &cp
	*d = cp
	return nil
}

func (s *MemoryStore) RemoveDomain(_ context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host = strings.ToLower(host)
	if _, ok := s.domains[host]; !ok {
		return tenant.ErrDomainNotFound
	}
	delete(s.domains, host)
	return nil
}
