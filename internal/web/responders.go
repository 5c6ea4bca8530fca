package web

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/locale"
	"github.com/alecgard/saasboard/internal/plan"
)

// gateResponder is what the gates need from a boundary: the auth.Responder
// cases plus plan denials and missing tenants.
type gateResponder interface {
	auth.Responder
	PlanDenied(w http.ResponseWriter, r *http.Request, denied *plan.DeniedError)
	NotFound(w http.ResponseWriter, r *http.Request)
}

// pageResponder answers refused page requests with redirects and pages.
//
// Unauthenticated visitors are sent to the login page. A role denial renders
// a 403 page in place. A plan denial redirects to the upgrade page, which
// names the missing feature.
type pageResponder struct {
	s *server
}

func (p pageResponder) locale(r *http.Request) string {
	if code := locale.FromContext(r.Context()); code != "" {
		return code
	}
	if p.s.Locales != nil {
		return p.s.Locales.Resolve(r)
	}
	return "en"
}

func (p pageResponder) Unauthenticated(w http.ResponseWriter, r *http.Request, reason auth.Reason) {
	if reason == auth.ReasonInvalidCredential || reason == auth.ReasonIncompleteClaims || reason == auth.ReasonUnknownTenant {
		p.s.clearSessionCookie(w)
	}
	target := locale.Path(p.locale(r), "/login")
	if r.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (p pageResponder) Forbidden(w http.ResponseWriter, r *http.Request, err error) {
	if p.s.Metrics != nil {
		p.s.Metrics.IncRoleDenial()
	}
	p.s.pages.render(w, r, http.StatusForbidden, "denied", pageData{})
}

func (p pageResponder) Error(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "page request failed", "path", r.URL.Path, "error", err,
		"request_id", RequestIDFromContext(r.Context()))
	p.s.pages.render(w, r, http.StatusInternalServerError, "error", pageData{})
}

func (p pageResponder) PlanDenied(w http.ResponseWriter, r *http.Request, denied *plan.DeniedError) {
	q := url.Values{}
	q.Set("feature", denied.Feature)
	q.Set("reason", denied.Reason)
	http.Redirect(w, r, locale.Path(p.locale(r), "/upgrade")+"?"+q.Encode(), http.StatusSeeOther)
}

func (p pageResponder) NotFound(w http.ResponseWriter, r *http.Request) {
	p.s.pages.render(w, r, http.StatusNotFound, "error", pageData{Content: "not_found"})
}

// apiResponder answers refused API requests with the JSON error envelope.
type apiResponder struct {
	s *server
}

func (a apiResponder) Unauthenticated(w http.ResponseWriter, r *http.Request, reason auth.Reason) {
	writeErrorDetail(w, http.StatusUnauthorized, errorDetail{
		Code:    "unauthenticated",
		Message: "a valid session is required",
		Reason:  string(reason),
	})
}

func (a apiResponder) Forbidden(w http.ResponseWriter, r *http.Request, err error) {
	if a.s.Metrics != nil {
		a.s.Metrics.IncRoleDenial()
	}
	writeError(w, http.StatusForbidden, "forbidden", "your role does not allow this action")
}

func (a apiResponder) Error(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "api request failed", "path", r.URL.Path, "error", err,
		"request_id", RequestIDFromContext(r.Context()))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (a apiResponder) PlanDenied(w http.ResponseWriter, r *http.Request, denied *plan.DeniedError) {
	writeErrorDetail(w, http.StatusForbidden, errorDetail{
		Code:    "plan_required",
		Message: "your plan does not include this feature",
		Reason:  denied.Reason,
		Feature: denied.Feature,
	})
}

func (a apiResponder) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "resource not found")
}
