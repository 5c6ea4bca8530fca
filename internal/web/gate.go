package web

import (
	"errors"
	"net/http"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/tenant"
)

// requireFeature admits the request only when the caller's tenant has
// feature. It must run after auth.SessionMiddleware; the tenant id always
// comes from the resolved context.
func (s *server) requireFeature(resp gateResponder, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := auth.TenantFromContext(r.Context())
			if !ok {
				resp.Unauthenticated(w, r, auth.ReasonNone)
				return
			}
			if !s.checkFeature(w, r, resp, tc, feature) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkFeature runs the plan gate and writes the refusal when it fails.
func (s *server) checkFeature(w http.ResponseWriter, r *http.Request, resp gateResponder, tc auth.TenantContext, feature string) bool {
	err := s.Gate.CheckAccess(r.Context(), tc.TenantID, feature)
	if err == nil {
		return true
	}

	var denied *plan.DeniedError
	switch {
	case errors.As(err, &denied):
		resp.PlanDenied(w, r, denied)
	case errors.Is(err, plan.ErrTenantNotFound):
		resp.NotFound(w, r)
	default:
		resp.Error(w, r, err)
	}
	return false
}

// listTenants resolves the caller and asks the tenant service for the
// overview; the service applies the owner gate itself. Refusals are written
// to w and reported as false.
func (s *server) listTenants(w http.ResponseWriter, r *http.Request, resp gateResponder) ([]tenant.Tenant, auth.Resolution, bool) {
	res, err := s.Resolver.Resolve(r.Context(), auth.SnapshotFromRequest(r))
	if err != nil {
		resp.Error(w, r, err)
		return nil, res, false
	}
	tenants, err := s.Tenants.GetAllTenants(r.Context(), res)
	if err != nil {
		s.ownerError(w, r, resp, res, err)
		return nil, res, false
	}
	return tenants, res, true
}

// ownerError maps a role gate failure onto the boundary's responses.
func (s *server) ownerError(w http.ResponseWriter, r *http.Request, resp gateResponder, res auth.Resolution, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		resp.Unauthenticated(w, r, res.Reason)
	case errors.Is(err, auth.ErrRoleDenied):
		s.logEvent("gate.role_denied", map[string]any{
			"user_id":   res.Context.UserID,
			"tenant_id": res.Context.TenantID,
			"role":      string(res.Context.Role),
			"path":      r.URL.Path,
		})
		resp.Forbidden(w, r, err)
	default:
		resp.Error(w, r, err)
	}
}
