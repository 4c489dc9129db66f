package pg

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSet tracks one connection pool per database alias. Tenant
// database backends open pools lazily on activation; the router hands
// them out per call. All methods are safe for concurrent use and
// Close is idempotent per alias.
type PoolSet struct {
	mu    sync.RWMutex
	cfg   Config
	pools map[string]*pgxpool.Pool
}

// NewPoolSet creates an empty pool set. cfg supplies the pool sizing
// knobs applied to every opened pool; its connection string is ignored.
func NewPoolSet(cfg Config) *PoolSet {
	return &PoolSet{cfg: cfg, pools: make(map[string]*pgxpool.Pool)}
}

// Get returns the open pool for alias, or ErrPoolNotOpen.
func (s *PoolSet) Get(alias string) (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[alias]
	if !ok {
		return nil, ErrPoolNotOpen
	}
	return pool, nil
}

// Open connects the alias to dsn if it is not connected yet and returns
// the pool. Concurrent callers for the same alias share one pool.
func (s *PoolSet) Open(ctx context.Context, alias, dsn string) (*pgxpool.Pool, error) {
	s.mu.RLock()
	pool, ok := s.pools[alias]
	s.mu.RUnlock()
	if ok {
		return pool, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pool, ok := s.pools[alias]; ok {
		return pool, nil
	}
	pool, err := Connect(ctx, s.cfg.WithConnectionString(dsn))
	if err != nil {
		return nil, err
	}
	s.pools[alias] = pool
	return pool, nil
}

// Close shuts down the pool for alias. Closing an absent alias is a
// no-op, which keeps backend deactivation idempotent.
func (s *PoolSet) Close(alias string) {
	s.mu.Lock()
	pool, ok := s.pools[alias]
	delete(s.pools, alias)
	s.mu.Unlock()
	if ok {
		pool.Close()
	}
}

// CloseAll shuts down every pool in the set.
func (s *PoolSet) CloseAll() {
	s.mu.Lock()
	pools := s.pools
	s.pools = make(map[string]*pgxpool.Pool)
	s.mu.Unlock()
	for _, pool := range pools {
		pool.Close()
	}
}
