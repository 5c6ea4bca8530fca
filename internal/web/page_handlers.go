package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/inventory"
	"github.com/alecgard/saasboard/internal/locale"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/sales"
	"github.com/alecgard/saasboard/internal/user"
)

const (
	lowStockThreshold = 5
	recentSalesLimit  = 50
	topProductsLimit  = 10
	advancedMonths    = 12
)

type loginView struct {
	Email string
	Next  string
	Error string
}

type dashboardView struct {
	Features       []string
	ShowInventory  bool
	ShowAccounting bool
	Valuation      int64
	MonthRevenue   int64
}

type inventoryView struct {
	Products          []inventory.Product
	Valuation         int64
	LowStockThreshold int
}

type advancedAccountingView struct {
	Months []sales.MonthRevenue
	Top    []sales.ProductRevenue
}

type upgradeView struct {
	Feature string
	Reason  string
}

// featureSet returns the caller's unlocked features for navigation. A
// failure degrades to an empty set; the gates still decide access.
func (s *server) featureSet(r *http.Request) (map[string]bool, []string) {
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok || s.Gate == nil {
		return map[string]bool{}, nil
	}
	list, err := s.Gate.Features(r.Context(), tc.TenantID)
	if err != nil {
		slog.WarnContext(r.Context(), "loading features", "tenant_id", tc.TenantID, "error", err)
		return map[string]bool{}, nil
	}
	set := make(map[string]bool, len(list))
	for _, f := range list {
		set[f] = true
	}
	return set, list
}

// renderPage renders an authenticated page with the navigation filled in.
func (s *server) renderPage(w http.ResponseWriter, r *http.Request, name string, content any) {
	set, _ := s.featureSet(r)
	s.pages.render(w, r, http.StatusOK, name, pageData{Features: set, Content: content})
}

// safeNext keeps post-login redirects on this site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

func (s *server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loginPage handles GET /{locale}/login.
func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	code := locale.FromContext(r.Context())
	next := safeNext(r.URL.Query().Get("next"), locale.Path(code, "/dashboard"))

	res, err := s.Resolver.Resolve(r.Context(), auth.SnapshotFromRequest(r))
	if err == nil && res.Authenticated() {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.pages.render(w, r, http.StatusOK, "login", pageData{Content: loginView{Next: next}})
}

// loginSubmit handles POST /{locale}/login.
func (s *server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	code := locale.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		s.pages.render(w, r, http.StatusBadRequest, "login", pageData{Content: loginView{Error: "login.failed"}})
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	next := safeNext(r.PostForm.Get("next"), locale.Path(code, "/dashboard"))
	view := loginView{Email: email, Next: next}

	u, err := s.Users.Authenticate(r.Context(), email, password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		s.audit(r, "auth.login_failed", "user", "", "email", strings.ToLower(email))
		view.Error = "login.failed"
		s.pages.render(w, r, http.StatusUnauthorized, "login", pageData{Content: view})
		return
	}
	if err != nil {
		s.html.Error(w, r, err)
		return
	}

	planCode, err := s.planCode(r, u.TenantID)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	token, expires, err := s.Tokens.Issue(auth.ClaimSet{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Role:     string(u.Role),
		Plan:     planCode,
	})
	if err != nil {
		s.html.Error(w, r, err)
		return
	}

	s.setSessionCookie(w, token, expires)
	s.audit(r, "auth.login", "user", u.ID, "user_id", u.ID, "tenant_id", u.TenantID, "plan", planCode)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// planCode is the code of the tenant's live subscription, or DefaultPlan.
func (s *server) planCode(r *http.Request, tenantID string) (string, error) {
	if s.Entitlements == nil {
		return auth.DefaultPlan, nil
	}
	ent, err := s.Entitlements.Entitlement(r.Context(), tenantID)
	if errors.Is(err, plan.ErrTenantNotFound) {
		return auth.DefaultPlan, nil
	}
	if err != nil {
		return "", err
	}
	if ent.Subscription.Live(s.now()) && ent.Subscription.Plan != nil {
		return ent.Subscription.Plan.Code, nil
	}
	return auth.DefaultPlan, nil
}

// loginThrottled renders the login page with a 429 when the limiter refuses.
func (s *server) loginThrottled(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusTooManyRequests, "login", pageData{Content: loginView{Error: "login.throttled"}})
}

// logout handles POST /{locale}/logout.
func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	s.audit(r, "auth.logout", "user", "")
	http.Redirect(w, r, locale.Path(locale.FromContext(r.Context()), "/login"), http.StatusSeeOther)
}

// dashboard handles GET /{locale}/dashboard.
func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	set, list := s.featureSet(r)
	view := dashboardView{
		Features:       list,
		ShowInventory:  set[plan.FeatureInventory],
		ShowAccounting: set[plan.FeatureAccounting],
	}

	if view.ShowInventory {
		v, err := s.Products.Valuation(r.Context(), tc.TenantID)
		if err != nil {
			s.html.Error(w, r, err)
			return
		}
		view.Valuation = v
	}
	if view.ShowAccounting {
		now := s.now()
		sum, err := s.Sales.Summarize(r.Context(), tc.TenantID, sales.MonthStart(now), now)
		if err != nil {
			s.html.Error(w, r, err)
			return
		}
		view.MonthRevenue = sum.Revenue
	}

	s.pages.render(w, r, http.StatusOK, "dashboard", pageData{Features: set, Content: view})
}

// inventoryPage handles GET /{locale}/inventory.
func (s *server) inventoryPage(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	products, err := s.Products.List(r.Context(), tc.TenantID)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	var total int64
	for _, p := range products {
		total += int64(p.Quantity) * p.UnitPrice
	}
	s.renderPage(w, r, "inventory", inventoryView{
		Products:          products,
		Valuation:         total,
		LowStockThreshold: lowStockThreshold,
	})
}

// salesPage handles GET /{locale}/sales.
func (s *server) salesPage(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	list, err := s.Sales.List(r.Context(), tc.TenantID, recentSalesLimit)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	s.renderPage(w, r, "sales", list)
}

// accountingPage handles GET /{locale}/accounting: the month to date.
func (s *server) accountingPage(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	now := s.now()
	sum, err := s.Sales.Summarize(r.Context(), tc.TenantID, sales.MonthStart(now), now)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	s.renderPage(w, r, "accounting", sum)
}

// advancedAccountingPage handles GET /{locale}/accounting/advanced.
func (s *server) advancedAccountingPage(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())
	now := s.now()
	from := sales.MonthStart(now).AddDate(0, -(advancedMonths - 1), 0)

	months, err := s.Sales.MonthlyRevenue(r.Context(), tc.TenantID, from, now)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	top, err := s.Sales.TopProducts(r.Context(), tc.TenantID, from, now, topProductsLimit)
	if err != nil {
		s.html.Error(w, r, err)
		return
	}
	s.renderPage(w, r, "accounting_advanced", advancedAccountingView{Months: months, Top: top})
}

// adminTenantsPage handles GET /{locale}/admin/tenants.
func (s *server) adminTenantsPage(w http.ResponseWriter, r *http.Request) {
	tenants, res, ok := s.listTenants(w, r, s.html)
	if !ok {
		return
	}
	r = r.WithContext(auth.ContextWithTenant(r.Context(), res.Context))
	s.renderPage(w, r, "admin_tenants", tenants)
}

// upgradePage handles GET /{locale}/upgrade.
func (s *server) upgradePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := upgradeView{Reason: q.Get("reason")}
	if f := q.Get("feature"); plan.KnownFeature(f) {
		view.Feature = f
	}
	s.renderPage(w, r, "upgrade", view)
}

// deniedPage handles GET /{locale}/denied.
func (s *server) deniedPage(w http.ResponseWriter, r *http.Request) {
	set, _ := s.featureSet(r)
	s.pages.render(w, r, http.StatusForbidden, "denied", pageData{Features: set})
}

// notFoundPage renders the localized 404.
func (s *server) notFoundPage(w http.ResponseWriter, r *http.Request) {
	s.html.NotFound(w, r)
}
