package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/alecgard/saasboard/internal/auth"
)

// Denial reasons. They are distinct from role denials so the UI can offer an
// upgrade path.
const (
	ReasonUnknownFeature   = "unknown_feature"
	ReasonNoSubscription   = "no_subscription"
	ReasonFeatureNotInPlan = "feature_not_in_plan"
)

var (
	// ErrPlanDenied matches every *DeniedError.
	ErrPlanDenied = errors.New("plan does not include feature")
	// ErrTenantNotFound is a not-found condition, not an authorization one.
	ErrTenantNotFound = errors.New("tenant not found")
)

// DeniedError explains why a tenant may not use a feature.
type DeniedError struct {
	TenantID string
	Feature  string
	Reason   string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("tenant %s denied feature %q: %s", e.TenantID, e.Feature, e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrPlanDenied
}

// EntitlementSource loads a tenant's entitlement. It returns ErrTenantNotFound
// when the tenant does not exist.
type EntitlementSource interface {
	Entitlement(ctx context.Context, tenantID string) (*Entitlement, error)
}

// DenialObserver is notified of every denial, e.g. for metrics.
type DenialObserver interface {
	ObservePlanDenial(reason string)
}

// Gate decides whether a tenant's plan unlocks a feature. It looks up the
// entitlement on every call and caches nothing.
type Gate struct {
	source   EntitlementSource
	events   auth.EventLogger
	observer DenialObserver
	now      func() time.Time // injectable clock for testing
}

// GateOption configures optional collaborators.
type GateOption func(*Gate)

// WithEventLogger records denials in an activity sink.
func WithEventLogger(l auth.EventLogger) GateOption {
	return func(g *Gate) { g.events = l }
}

// WithDenialObserver reports denials.
func WithDenialObserver(o DenialObserver) GateOption {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a plan gate backed by source.
func NewGate(source EntitlementSource, opts ...GateOption) *Gate {
	g := &Gate{source: source, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAccess returns nil when tenantID may use feature. tenantID must come
// from an authenticated TenantContext, never from client input.
func (g *Gate) CheckAccess(ctx context.Context, tenantID, feature string) error {
	if !KnownFeature(feature) {
		return g.deny(tenantID, feature, ReasonUnknownFeature)
	}

	ent, err := g.source.Entitlement(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return err
		}
		return fmt.Errorf("loading entitlement: %w", err)
	}

	now := g.now()
	if ent == nil || !ent.Subscription.Live(now) {
		return g.deny(tenantID, feature, ReasonNoSubscription)
	}
	if !slices.Contains(ent.EffectiveFeatures(now), feature) {
		return g.deny(tenantID, feature, ReasonFeatureNotInPlan)
	}
	return nil
}

// Features returns the feature keys tenantID currently has. A tenant without
// a live subscription has none.
func (g *Gate) Features(ctx context.Context, tenantID string) ([]string, error) {
	ent, err := g.source.Entitlement(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading entitlement: %w", err)
	}
	return ent.EffectiveFeatures(g.now()), nil
}

func (g *Gate) deny(tenantID, feature, reason string) error {
	if g.observer != nil {
		g.observer.ObservePlanDenial(reason)
	}
	if g.events != nil {
		g.events.Log("gate.plan_denied", map[string]any{
			"tenant_id": tenantID,
			"feature":   feature,
			"reason":    reason,
		})
	}
	return &DeniedError{TenantID: tenantID, Feature: feature, Reason: reason}
}
