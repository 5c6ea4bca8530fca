package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/saasboard/internal/activity"
	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/inventory"
	"github.com/alecgard/saasboard/internal/plan"
)

const maxOverrideDays = 365

// me handles GET /api/v1/me.
func (s *server) me(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	features, err := s.Gate.Features(r.Context(), tc.TenantID)
	if errors.Is(err, plan.ErrTenantNotFound) {
		s.api.NotFound(w, r)
		return
	}
	if err != nil {
		s.api.Error(w, r, err)
		return
	}
	if features == nil {
		features = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     tc,
		"features": features,
	})
}

// listTenantsAPI handles GET /api/v1/admin/tenants.
func (s *server) listTenantsAPI(w http.ResponseWriter, r *http.Request) {
	tenants, _, ok := s.listTenants(w, r, s.api)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// checkFeatureAPI handles GET /api/v1/features/{feature}. A denial is a
// normal answer here, not an error.
func (s *server) checkFeatureAPI(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	feature := chi.URLParam(r, "feature")

	err := s.Gate.CheckAccess(r.Context(), tc.TenantID, feature)
	var denied *plan.DeniedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"feature": feature, "allowed": true})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusOK, map[string]any{"feature": feature, "allowed": false, "reason": denied.Reason})
	case errors.Is(err, plan.ErrTenantNotFound):
		s.api.NotFound(w, r)
	default:
		s.api.Error(w, r, err)
	}
}

// listInventoryAPI handles GET /api/v1/inventory.
func (s *server) listInventoryAPI(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	products, err := s.Products.List(r.Context(), tc.TenantID)
	if err != nil {
		s.api.Error(w, r, err)
		return
	}
	if products == nil {
		products = []inventory.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products, "count": len(products)})
}

type trialOverrideRequest struct {
	PlanCode string `json:"plan_code"`
	Reason   string `json:"reason"`
	Days     int    `json:"days"`
}

// createTrialOverride handles POST /api/v1/admin/tenants/{id}/trial-overrides.
func (s *server) createTrialOverride(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	var req trialOverrideRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	req.PlanCode = strings.ToUpper(strings.TrimSpace(req.PlanCode))
	req.Reason = strings.TrimSpace(req.Reason)
	if req.PlanCode == "" || req.Reason == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "plan_code and reason are required")
		return
	}
	if req.Days < 1 || req.Days > maxOverrideDays {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "days must be between 1 and 365")
		return
	}

	if _, err := s.Entitlements.Entitlement(r.Context(), tenantID); err != nil {
		if errors.Is(err, plan.ErrTenantNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "tenant not found")
			return
		}
		s.api.Error(w, r, err)
		return
	}

	p, err := s.Plans.GetByCode(r.Context(), req.PlanCode)
	if errors.Is(err, plan.ErrPlanNotFound) {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "unknown plan_code")
		return
	}
	if err != nil {
		s.api.Error(w, r, err)
		return
	}

	expires := s.now().Add(time.Duration(req.Days) * 24 * time.Hour)
	o, err := s.Plans.CreateTrialOverride(r.Context(), tenantID, p.ID, req.Reason, expires)
	if err != nil {
		s.api.Error(w, r, err)
		return
	}
	o.Plan = p

	s.audit(r, "plan.trial_override_created", "tenant", tenantID,
		"override_id", o.ID, "plan_code", p.Code, "days", req.Days, "reason", req.Reason)
	writeJSON(w, http.StatusCreated, o)
}

// listActivityAPI handles GET /api/v1/admin/activity.
func (s *server) listActivityAPI(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := activity.Query{
		TenantID: params.Get("tenant_id"),
		Event:    params.Get("event"),
		Cursor:   params.Get("cursor"),
	}

	var err error
	if q.From, err = parseTimeParam(params.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "from must be RFC3339 or YYYY-MM-DD")
		return
	}
	if q.To, err = parseTimeParam(params.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "to must be RFC3339 or YYYY-MM-DD")
		return
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_param", "limit must be between 1 and 500")
			return
		}
		q.Limit = n
	}

	events, next, err := s.Activity.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "invalid_param", "invalid cursor")
			return
		}
		s.api.Error(w, r, err)
		return
	}
	if events == nil {
		events = []*activity.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "next_cursor": next})
}

// parseTimeParam parses a date query param in YYYY-MM-DD or RFC3339 format.
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// health handles GET /health.
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
