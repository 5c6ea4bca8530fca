package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/locale"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/ratelimit"
)

// advancedAccountingRole is the lowest role that may open the advanced
// accounting reports; the role is checked before the plan.
const advancedAccountingRole = auth.RoleManager

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	s := newServer(d)
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(slogRequestLogger)
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware)
	}

	r.Get("/health", s.health)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.PrometheusHandler())
		r.With(auth.OwnerMiddleware(s.Resolver, s.api)).Get("/metrics/summary", s.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, locale.Path(s.Locales.Resolve(r), "/dashboard"), http.StatusSeeOther)
	})

	// JSON API.
	r.Route("/api/v1", func(ar chi.Router) {
		if len(s.AllowedOrigins) > 0 {
			ar.Use(corsMiddleware(s.AllowedOrigins))
		}
		ar.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.api.NotFound(w, r)
		})

		// The tenant service applies the owner gate itself.
		ar.Get("/admin/tenants", s.listTenantsAPI)

		ar.Group(func(or chi.Router) {
			or.Use(auth.OwnerMiddleware(s.Resolver, s.api))
			or.Post("/admin/tenants/{id}/trial-overrides", s.createTrialOverride)
			or.Get("/admin/activity", s.listActivityAPI)
		})

		ar.Group(func(sr chi.Router) {
			sr.Use(auth.SessionMiddleware(s.Resolver, s.api))
			sr.Get("/me", s.me)
			sr.Get("/features/{feature}", s.checkFeatureAPI)
			sr.With(
				s.requireFeature(s.api, plan.FeatureAPIAccess),
				s.requireFeature(s.api, plan.FeatureInventory),
			).Get("/inventory", s.listInventoryAPI)
		})
	})

	// Localized pages.
	r.Route("/{locale}", func(lr chi.Router) {
		lr.Use(s.Locales.Middleware)
		lr.NotFound(s.notFoundPage)

		lr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, locale.Path(locale.FromContext(r.Context()), "/dashboard"), http.StatusSeeOther)
		})

		lr.Get("/login", s.loginPage)
		if s.LoginLimiter != nil {
			throttle := ratelimit.Middleware(s.LoginLimiter, ratelimit.ClientIP, http.HandlerFunc(s.loginThrottled), func() {
				if s.Metrics != nil {
					s.Metrics.IncRateLimitRejection("login")
				}
			})
			lr.With(throttle).Post("/login", s.loginSubmit)
		} else {
			lr.Post("/login", s.loginSubmit)
		}
		lr.Post("/logout", s.logout)

		lr.Get("/admin/tenants", s.adminTenantsPage)

		lr.Group(func(pr chi.Router) {
			pr.Use(auth.SessionMiddleware(s.Resolver, s.html))

			pr.Get("/dashboard", s.dashboard)
			pr.Get("/upgrade", s.upgradePage)
			pr.Get("/denied", s.deniedPage)

			pr.With(s.requireFeature(s.html, plan.FeatureInventory)).Get("/inventory", s.inventoryPage)
			pr.With(s.requireFeature(s.html, plan.FeatureSales)).Get("/sales", s.salesPage)
			pr.With(s.requireFeature(s.html, plan.FeatureAccounting)).Get("/accounting", s.accountingPage)
			pr.With(
				auth.RoleMiddleware(advancedAccountingRole, s.html),
				s.requireFeature(s.html, plan.FeatureAdvancedAccounting),
			).Get("/accounting/advanced", s.advancedAccountingPage)
		})
	})

	return r
}
