package tenant

import (
	"context"
	"sort"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/plan"
)

// Source is the read side the listing needs. *Store implements it.
type Source interface {
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListLiveSubscriptions(ctx context.Context) ([]plan.Subscription, error)
	ListTrialOverrides(ctx context.Context) ([]plan.TrialOverride, error)
}

// Service implements the platform-operator tenant views.
type Service struct {
	source Source
	events auth.EventLogger
}

// NewService creates a tenant service. events may be nil.
func NewService(source Source, events auth.EventLogger) *Service {
	return &Service{source: source, events: events}
}

// GetAllTenants returns every tenant, newest first, each with its record
// counts, its most recent active or trialing subscription and its most
// recent trial override. Only an authenticated owner may call it; tenant
// scoped data never implies platform-wide visibility.
func (s *Service) GetAllTenants(ctx context.Context, res auth.Resolution) ([]Tenant, error) {
	if err := auth.RequireOwner(res); err != nil {
		return nil, err
	}

	tenants, err := s.source.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.source.ListLiveSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := s.source.ListTrialOverrides(ctx)
	if err != nil {
		return nil, err
	}

	out := assemble(tenants, subs, overrides)

	if s.events != nil {
		s.events.Log("tenants.listed", map[string]any{
			"user_id": res.Context.UserID,
			"count":   len(out),
		})
	}
	return out, nil
}

// assemble attaches at most one subscription and one override to each tenant
// and orders tenants by creation time, newest first. When a tenant has
// several live subscriptions the most recently created one wins; equal
// timestamps fall back to the larger id so the result is deterministic.
func assemble(tenants []Tenant, subs []plan.Subscription, overrides []plan.TrialOverride) []Tenant {
	latestSub := make(map[string]*plan.Subscription, len(subs))
	for i := range subs {
		s := &subs[i]
		if s.Status != plan.StatusActive && s.Status != plan.StatusTrialing {
			continue
		}
		cur, ok := latestSub[s.TenantID]
		if !ok || plan.Newer(s.CreatedAt, s.ID, cur.CreatedAt, cur.ID) {
			latestSub[s.TenantID] = s
		}
	}

	latestOverride := make(map[string]*plan.TrialOverride, len(overrides))
	for i := range overrides {
		o := &overrides[i]
		cur, ok := latestOverride[o.TenantID]
		if !ok || plan.Newer(o.CreatedAt, o.ID, cur.CreatedAt, cur.ID) {
			latestOverride[o.TenantID] = o
		}
	}

	out := make([]Tenant, len(tenants))
	copy(out, tenants)
	for i := range out {
		out[i].Subscription = latestSub[out[i].ID]
		out[i].TrialOverride = latestOverride[out[i].ID]
	}

	sort.SliceStable(out, func(i, j int) bool {
		return plan.Newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}
