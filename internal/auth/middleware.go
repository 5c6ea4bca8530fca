package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type contextKey int

const tenantContextKey contextKey = iota

// ContextWithTenant returns a new context carrying the given tenant context.
func ContextWithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// TenantFromContext extracts the tenant context, reporting whether one was set.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey).(TenantContext)
	return tc, ok
}

// Responder answers requests the pipeline refuses. The HTML and JSON
// boundaries implement it differently.
type Responder interface {
	// Unauthenticated ends the request, typically with a redirect to login.
	Unauthenticated(w http.ResponseWriter, r *http.Request, reason Reason)
	// Forbidden ends the request for an authenticated caller lacking a role.
	Forbidden(w http.ResponseWriter, r *http.Request, err error)
	// Error ends the request after an infrastructure failure.
	Error(w http.ResponseWriter, r *http.Request, err error)
}

// SessionMiddleware resolves the tenant context and injects it into the
// request context. Unauthenticated requests never reach next.
func SessionMiddleware(resolver *Resolver, resp Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), SnapshotFromRequest(r))
			if err != nil {
				slog.ErrorContext(r.Context(), "resolving tenant context", "error", err)
				resp.Error(w, r, err)
				return
			}
			if !res.Authenticated() {
				resp.Unauthenticated(w, r, res.Reason)
				return
			}

			ctx := ContextWithTenant(r.Context(), res.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerMiddleware resolves the caller and admits only the owner role. It
// resolves on its own, so it does not depend on SessionMiddleware running
// first.
func OwnerMiddleware(resolver *Resolver, resp Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, err := resolver.RequireOwner(r.Context(), SnapshotFromRequest(r))
			switch {
			case err == nil:
			case errors.Is(err, ErrUnauthenticated):
				resp.Unauthenticated(w, r, ReasonNone)
				return
			case errors.Is(err, ErrRoleDenied):
				resp.Forbidden(w, r, err)
				return
			default:
				slog.ErrorContext(r.Context(), "resolving owner context", "error", err)
				resp.Error(w, r, err)
				return
			}

			ctx := ContextWithTenant(r.Context(), tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleMiddleware admits callers whose role is at least min. It expects
// SessionMiddleware to have run.
func RoleMiddleware(min Role, resp Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := TenantFromContext(r.Context())
			if !ok {
				resp.Unauthenticated(w, r, ReasonNone)
				return
			}
			if err := RequireRole(tc, min); err != nil {
				resp.Forbidden(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
