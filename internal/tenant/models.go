package tenant

import (
	"time"

	"github.com/alecgard/saasboard/internal/plan"
)

// Tenant is an isolated customer organization as seen by the platform
// operator.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	Counts    Counts    `json:"counts"`

	// Subscription is the most recently created active or trialing
	// subscription, or nil.
	Subscription  *plan.Subscription  `json:"subscription,omitempty"`
	TrialOverride *plan.TrialOverride `json:"trialOverride,omitempty"`
}

// Counts holds the number of records a tenant owns per domain table.
type Counts struct {
	Users    int64 `json:"users"`
	Products int64 `json:"products"`
	Sales    int64 `json:"sales"`
}

// CreateTenantInput holds the fields required to create a tenant.
type CreateTenantInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}
