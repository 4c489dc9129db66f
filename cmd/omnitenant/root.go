package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/config"
	"github.com/dmitrymomot/omnitenant/pkg/logger"
	"github.com/dmitrymomot/omnitenant/pkg/migrate"
	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/redis"
	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/router"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var rootCmd = &cobra.Command{
	Use:   "omnitenant",
	Short: "Manage multi-tenant resources: tenants, domains, migrations",
	Long: `omnitenant administers the tenant registry and the isolated
resources behind each tenant: dedicated databases, schemas in the
shared database, and cache namespaces.

Connection settings come from the environment (PG_CONN_URL,
PG_ADMIN_CONN_URL, REDIS_URL, ...) or a .env file in the working
directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(serveCmd)
}

// appConfig holds the CLI's own settings beyond pg/redis/logger.
type appConfig struct {
	AdminConnURL   string `env:"PG_ADMIN_CONN_URL"`                    // maintenance-database URL used for CREATE/DROP DATABASE; optional
	PublicHost     string `env:"PUBLIC_HOST"`                          // shared application hostname for the domain resolver
	PublicTenantID string `env:"PUBLIC_TENANT_ID" envDefault:"public"` // tenant resolved for the public host
	ListenAddr     string `env:"LISTEN_ADDR" envDefault:":8080"`       // serve command bind address
}

// app wires the shared infrastructure every command works with.
type app struct {
	cfg      appConfig
	pgCfg    pg.Config
	log      *slog.Logger
	master   *pgxpool.Pool
	admin    *pgxpool.Pool // nil when PG_ADMIN_CONN_URL is unset
	pools    *pg.PoolSet
	cache    backend.Cache // nil when redis is unreachable
	store    *registry.PostgresStore
	events   *registry.Hub
	backends *backend.Manager
	router   *router.Router
	migrator *migrate.Migrator
}

// newApp connects to the master database (and, best effort, to redis)
// and builds the service graph. Callers must defer a.close().
func newApp(ctx context.Context) (*app, error) {
	a := &app{}
	if err := config.Load(&a.cfg); err != nil {
		return nil, err
	}
	if err := config.Load(&a.pgCfg); err != nil {
		return nil, err
	}
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return nil, err
	}
	a.log = logger.FromConfig(logCfg,
		logger.WithContextExtractors(tenant.LoggerExtractor()))

	master, err := pg.Connect(ctx, a.pgCfg)
	if err != nil {
		return nil, err
	}
	a.master = master

	a.store = registry.NewPostgresStore(master)
	if err := a.store.EnsureSchema(ctx); err != nil {
		master.Close()
		return nil, err
	}

	if a.cfg.AdminConnURL != "" {
		admin, err := pg.Connect(ctx, a.pgCfg.WithConnectionString(a.cfg.AdminConnURL))
		if err != nil {
			master.Close()
			return nil, err
		}
		a.admin = admin
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err == nil {
		if client, err := redis.Connect(ctx, redisCfg); err == nil {
			a.cache = backend.NewRedisCache(client)
		} else {
			a.log.WarnContext(ctx, "cache unavailable, cache-isolated tenants degraded", logger.Error(err))
		}
	}

	a.pools = pg.NewPoolSet(a.pgCfg)
	a.events = registry.NewHub(16)
	a.backends = backend.NewManager(a.adminExecer(), master, a.pools, a.cache, a.pgCfg, a.log)
	a.router = router.New(master, a.pools, a.cache)
	a.migrator = migrate.New(a.store,
		migrate.NewGooseRunner(master, a.pgCfg, a.log), a.events, a.log)

	// Lifecycle transitions land in the operator log by default;
	// other subscribers hook the same hub.
	go func() {
		for e := range a.events.Subscribe(ctx) {
			a.log.InfoContext(ctx, "tenant event",
				slog.String("type", string(e.Type)), logger.TenantID(e.TenantID))
		}
	}()

	return a, nil
}

func (a *app) adminExecer() pg.Execer {
	if a.admin == nil {
		return nil
	}
	return a.admin
}

func (a *app) close() {
	_ = a.events.Close()
	a.pools.CloseAll()
	if a.admin != nil {
		a.admin.Close()
	}
	a.master.Close()
}
