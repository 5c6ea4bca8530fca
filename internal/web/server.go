package web

import (
	"context"
	"time"

	"github.com/alecgard/saasboard/internal/activity"
	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/inventory"
	"github.com/alecgard/saasboard/internal/locale"
	"github.com/alecgard/saasboard/internal/metrics"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/ratelimit"
	"github.com/alecgard/saasboard/internal/sales"
	"github.com/alecgard/saasboard/internal/tenant"
	"github.com/alecgard/saasboard/internal/user"
)

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

// TokenIssuer mints session credentials.
type TokenIssuer interface {
	Issue(c auth.ClaimSet) (string, time.Time, error)
}

// FeatureGate answers plan questions for a tenant.
type FeatureGate interface {
	CheckAccess(ctx context.Context, tenantID, feature string) error
	Features(ctx context.Context, tenantID string) ([]string, error)
}

// TenantLister is the owner-only tenant overview.
type TenantLister interface {
	GetAllTenants(ctx context.Context, res auth.Resolution) ([]tenant.Tenant, error)
}

// ProductReader reads a tenant's stock.
type ProductReader interface {
	List(ctx context.Context, tenantID string) ([]inventory.Product, error)
	Valuation(ctx context.Context, tenantID string) (int64, error)
}

// SalesReader reads a tenant's sales and accounting figures.
type SalesReader interface {
	List(ctx context.Context, tenantID string, limit int) ([]sales.Sale, error)
	Summarize(ctx context.Context, tenantID string, from, to time.Time) (*sales.Summary, error)
	MonthlyRevenue(ctx context.Context, tenantID string, from, to time.Time) ([]sales.MonthRevenue, error)
	TopProducts(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]sales.ProductRevenue, error)
}

// PlanAdmin manages plan grants on behalf of the platform owner.
type PlanAdmin interface {
	GetByCode(ctx context.Context, code string) (*plan.Plan, error)
	CreateTrialOverride(ctx context.Context, tenantID, planID, reason string, expiresAt time.Time) (*plan.TrialOverride, error)
}

// ActivityReader pages through the activity log.
type ActivityReader interface {
	List(ctx context.Context, q activity.Query) ([]*activity.Event, string, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds all dependencies for the router. Optional fields may be nil.
type Deps struct {
	Resolver     *auth.Resolver
	Locales      *locale.Resolver
	Users        Authenticator
	Tokens       TokenIssuer
	Gate         FeatureGate
	Entitlements plan.EntitlementSource
	Tenants      TenantLister
	Products     ProductReader
	Sales        SalesReader
	Plans        PlanAdmin
	Activity     ActivityReader
	Events       auth.EventLogger
	Metrics      *metrics.Metrics
	LoginLimiter *ratelimit.Limiter
	DB           Pinger

	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string
}

// server carries the dependencies shared by every handler.
type server struct {
	Deps
	pages *pageRenderer
	html  pageResponder
	api   apiResponder
	now   func() time.Time
}

func newServer(d Deps) *server {
	if d.CookieName == "" {
		d.CookieName = "token"
	}
	s := &server{Deps: d, now: time.Now}
	s.pages = newPageRenderer()
	s.html = pageResponder{s: s}
	s.api = apiResponder{s: s}
	return s
}

// logEvent forwards to the activity sink when one is configured.
func (s *server) logEvent(event string, metadata map[string]any) {
	if s.Events != nil {
		s.Events.Log(event, metadata)
	}
}
