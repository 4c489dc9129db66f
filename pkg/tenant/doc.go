// Package tenant provides the core multi-tenancy primitives: tenant and
// domain records, isolation kinds, context-scoped activation, request
// resolvers and the resolution middleware.
//
// # Architecture
//
// The package is built around three concepts:
//
//  1. Scopes - the active tenant (or master/schema sentinel) carried on
//     a context.Context, activated with WithTenant and friends
//  2. Resolvers - strategies extracting a tenant identifier from an
//     HTTP request (subdomain, custom domain, header, composite)
//  3. Middleware - orchestrates resolution, registry lookup, caching
//     and scope activation per request
//
// Scope activation is strictly nested: WithTenant derives a child
// context, so leaving the scope (returning to the parent context)
// restores whatever scope was active before, on success and error
// paths alike. Concurrent goroutines carry independent contexts and
// can never observe each other's active tenant.
//
// # Usage
//
//	resolver := tenant.NewSubdomainResolver(".saas.com")
//	mw := tenant.Middleware(resolver, store,
//		tenant.WithCacheTTL(10*time.Minute),
//		tenant.WithSkipPaths([]string{"/health"}),
//	)
//	router.Use(mw)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		t, ok := tenant.FromContext(r.Context())
//		...
//	}
//
// The connection router in pkg/router reads the scope at every call,
// which is what makes data operations follow the active tenant.
package tenant
