package plan

import (
	"slices"
	"time"
)

// Feature keys are the capabilities a plan can unlock.
const (
	FeatureDashboard          = "dashboard"
	FeatureInventory          = "inventory"
	FeatureSales              = "sales"
	FeatureAccounting         = "accounting"
	FeatureAdvancedAccounting = "advanced_accounting"
	FeatureMultiBranch        = "multi_branch"
	FeatureAPIAccess          = "api_access"
)

// Features lists every known feature key.
var Features = []string{
	FeatureDashboard,
	FeatureInventory,
	FeatureSales,
	FeatureAccounting,
	FeatureAdvancedAccounting,
	FeatureMultiBranch,
	FeatureAPIAccess,
}

// KnownFeature reports whether key is in the feature catalogue.
func KnownFeature(key string) bool {
	return slices.Contains(Features, key)
}

// Plan tier codes.
const (
	CodeFree       = "FREE"
	CodeBasic      = "BASIC"
	CodePro        = "PRO"
	CodeEnterprise = "ENTERPRISE"
)

// Catalog is the default feature set per tier, used when seeding plans.
var Catalog = map[string][]string{
	CodeFree:       {FeatureDashboard},
	CodeBasic:      {FeatureDashboard, FeatureInventory, FeatureSales},
	CodePro:        {FeatureDashboard, FeatureInventory, FeatureSales, FeatureAccounting, FeatureAPIAccess},
	CodeEnterprise: Features,
}

// Subscription statuses.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Plan is a subscription tier and the features it unlocks.
type Plan struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Subscription binds a tenant to a plan.
type Subscription struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenantId"`
	PlanID           string     `json:"planId"`
	Status           string     `json:"status"`
	TrialEndsAt      *time.Time `json:"trialEndsAt,omitempty"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	Plan             *Plan      `json:"plan,omitempty"`
}

// Live reports whether the subscription currently entitles its tenant. Only
// active and trialing subscriptions do; a trial past its end does not.
func (s *Subscription) Live(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case StatusActive:
		return true
	case StatusTrialing:
		return s.TrialEndsAt == nil || now.Before(*s.TrialEndsAt)
	default:
		return false
	}
}

// TrialOverride is a manually granted, time-boxed entitlement on top of a
// tenant's subscription.
type TrialOverride struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	PlanID    string    `json:"planId"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	Plan      *Plan     `json:"plan,omitempty"`
}

// Active reports whether the override has not yet expired.
func (o *TrialOverride) Active(now time.Time) bool {
	return o != nil && now.Before(o.ExpiresAt)
}

// Newer reports whether a record created at aTime with id aID sorts after
// one created at bTime with id bID. Equal timestamps fall back to the larger
// id so every caller picks the same row.
func Newer(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

// LatestLive returns the most recently created subscription that is live at
// now, or nil. An ended trial never hides an older active subscription.
func LatestLive(subs []Subscription, now time.Time) *Subscription {
	var best *Subscription
	for i := range subs {
		s := &subs[i]
		if !s.Live(now) {
			continue
		}
		if best == nil || Newer(s.CreatedAt, s.ID, best.CreatedAt, best.ID) {
			best = s
		}
	}
	return best
}

// LatestActive returns the most recently created override that has not
// expired at now, or nil.
func LatestActive(overrides []TrialOverride, now time.Time) *TrialOverride {
	var best *TrialOverride
	for i := range overrides {
		o := &overrides[i]
		if !o.Active(now) {
			continue
		}
		if best == nil || Newer(o.CreatedAt, o.ID, best.CreatedAt, best.ID) {
			best = o
		}
	}
	return best
}

// Entitlement is a tenant's current subscription state as seen by the gate.
// Subscription is nil when the tenant has no live row.
type Entitlement struct {
	TenantID     string
	Subscription *Subscription
	Override     *TrialOverride
}

// EffectiveFeatures returns the feature keys unlocked at now. Without a live
// subscription nothing is unlocked, whatever the override says.
func (e *Entitlement) EffectiveFeatures(now time.Time) []string {
	if e == nil || !e.Subscription.Live(now) || e.Subscription.Plan == nil {
		return nil
	}
	features := slices.Clone(e.Subscription.Plan.Features)
	if e.Override.Active(now) && e.Override.Plan != nil {
		for _, f := range e.Override.Plan.Features {
			if !slices.Contains(features, f) {
				features = append(features, f)
			}
		}
	}
	return features
}
