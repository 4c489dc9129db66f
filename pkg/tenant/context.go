package tenant

import (
	"context"
	"log/slog"
)

// Scope is the active resource scope of an execution unit. The zero
// value means "unscoped": data operations go to the master resources.
type Scope struct {
	// Tenant is the active tenant, nil for master and schema scopes.
	Tenant *Tenant
	// Master is true when master scope was requested explicitly. The
	// router treats it the same as an unset scope; it exists so callers
	// can escape an enclosing tenant scope.
	Master bool
	// Schema is set for a raw schema scope activated without a tenant
	// record, e.g. for maintenance sessions.
	Schema string
}

// IsZero reports whether no scope has been activated.
func (s Scope) IsZero() bool {
	return s.Tenant == nil && !s.Master && s.Schema == ""
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant returns a context with t as the active tenant. The caller
// keeps the parent context; dropping the returned context restores the
// previous scope, which gives nested activation its stack discipline
// for free and guarantees restoration on every exit path.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, Scope{Tenant: t})
}

// WithMasterScope returns a context explicitly scoped to the master
// resources, shadowing any enclosing tenant scope.
func WithMasterScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, Scope{Master: true})
}

// WithSchemaScope returns a context scoped to a named schema without an
// associated tenant record.
func WithSchemaScope(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKey{}, Scope{Schema: name})
}

// ScopeFromContext returns the active scope. The zero Scope means no
// activation happened on this context chain.
func ScopeFromContext(ctx context.Context) Scope {
	s, _ := ctx.Value(contextKey{}).(Scope)
	return s
}

// FromContext retrieves the active tenant from the context.
// Returns nil, false when the scope is unset, master or schema.
func FromContext(ctx context.Context) (*Tenant, bool) {
	s := ScopeFromContext(ctx)
	return s.Tenant, s.Tenant != nil
}

// IdentifierFromContext retrieves just the tenant identifier from the
// context. Returns "" and false if no tenant is active.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return t.ID, true
}

// MustFromContext retrieves the active tenant from the context.
// Panics if no tenant is active. Use this only in handlers that
// absolutely require a tenant to function.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return t
}

// RunAs executes fn inside t's scope. The scope ends when fn returns,
// on success, error or panic alike, restoring whatever scope the
// caller had.
func RunAs(ctx context.Context, t *Tenant, fn func(context.Context) error) error {
	return fn(WithTenant(ctx, t))
}

// LoggerExtractor returns a context extractor for the logger that adds
// the active tenant identifier to every record.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IdentifierFromContext(ctx); ok {
			return slog.String("tenant_id", id), true
		}
		return slog.Attr{}, false
	}
}
