package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/omnitenant/pkg/pg"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a tenant-aware HTTP server",
	Long: `Run an HTTP server that resolves the tenant for each request
from its custom domain, subdomain or X-Tenant-ID header, and activates
the tenant's scope for the life of the request. Intended as a routing
probe and a wiring example for embedding applications.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		resolver := tenant.NewCompositeResolver(
			tenant.NewDomainResolver(a.store, a.cfg.PublicHost, a.cfg.PublicTenantID),
			tenant.NewSubdomainResolver(""),
			tenant.NewHeaderResolver(""),
		)

		r := chi.NewRouter()
		r.Use(chimiddleware.RequestID)
		r.Use(chimiddleware.Recoverer)
		r.Use(tenant.Middleware(resolver, a.store,
			tenant.WithLogger(a.log),
			tenant.WithSkipPaths([]string{"/health"}),
		))

		r.Get("/health", a.healthHandler())
		r.Get("/whoami", a.whoamiHandler())
		r.With(tenant.RequireTenant(nil)).Get("/ping", a.pingHandler())

		srv := &http.Server{
			Addr:              a.cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.InfoContext(ctx, "http server listening", slog.String("addr", a.cfg.ListenAddr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		a.log.InfoContext(ctx, "http server stopped")
		return nil
	},
}

// healthHandler reports liveness of the master database and, when
// configured, the cache.
func (a *app) healthHandler() http.HandlerFunc {
	check := pg.Healthcheck(a.master)
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// whoamiHandler echoes the scope the request resolved to.
func (a *app) whoamiHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := tenant.FromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"scope": "master"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"scope":     "tenant",
			"tenant_id": t.ID,
			"name":      t.Name,
			"isolation": t.Isolation,
		})
	}
}

// pingHandler exercises the full routing path: it checks a connection
// out of the tenant's routed pool and reports where the query ran.
func (a *app) pingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, release, err := a.router.Acquire(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		defer release()

		var db, schema string
		if err := conn.QueryRow(r.Context(),
			"SELECT current_database(), current_schema()").Scan(&db, &schema); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"database": db, "schema": schema})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
