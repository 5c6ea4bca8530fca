package auth

import (
	"context"
	"errors"
	"fmt"
)

// Role is a caller's privilege level inside a tenant.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

// DefaultRole is applied when a claim set carries no role. It is the lowest
// privilege.
const DefaultRole = RoleStaff

// DefaultPlan is applied when a claim set carries no plan.
const DefaultPlan = "FREE"

// rank orders roles from least to most privileged. Unknown roles rank 0.
var rank = map[Role]int{
	RoleStaff:   1,
	RoleManager: 2,
	RoleAdmin:   3,
	RoleOwner:   4,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// AtLeast reports whether r is at least as privileged as min.
func (r Role) AtLeast(min Role) bool {
	return rank[r] > 0 && rank[r] >= rank[min]
}

// ClaimSet is the verified payload of a session credential. Role and Plan may
// be empty; UserID and TenantID are required for a usable claim set.
type ClaimSet struct {
	UserID   string
	TenantID string
	Role     string
	Plan     string
}

// Complete reports whether the claim set names both a user and a tenant.
func (c ClaimSet) Complete() bool {
	return c.UserID != "" && c.TenantID != ""
}

// TenantContext is the per-request identity record: who is asking, for which
// tenant, on which plan. It is never persisted or shared across requests.
type TenantContext struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Role     Role   `json:"role"`
	Plan     string `json:"plan"`
}

// NewTenantContext builds a TenantContext from a complete claim set, applying
// DefaultRole and DefaultPlan when they are absent.
func NewTenantContext(c ClaimSet) TenantContext {
	role := Role(c.Role)
	if role == "" {
		role = DefaultRole
	}
	plan := c.Plan
	if plan == "" {
		plan = DefaultPlan
	}
	return TenantContext{
		UserID:   c.UserID,
		TenantID: c.TenantID,
		Role:     role,
		Plan:     plan,
	}
}

// IsOwner returns true if the context carries the platform owner role.
func (tc TenantContext) IsOwner() bool {
	return tc.Role == RoleOwner
}

var (
	// ErrUnauthenticated is returned by gates when no valid session exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRoleDenied is returned when the caller is authenticated but lacks
	// the required role.
	ErrRoleDenied = errors.New("role not permitted")
)

// RoleError describes a role gate rejection. It matches ErrRoleDenied.
type RoleError struct {
	Have Role
	Need Role
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("role %s not permitted, requires %s", e.Have, e.Need)
}

func (e *RoleError) Is(target error) bool {
	return target == ErrRoleDenied
}

// Verifier validates a session credential and returns its claims.
type Verifier interface {
	Verify(token string) (ClaimSet, error)
}

// TenantChecker confirms that a claimed tenant exists.
type TenantChecker interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
}

// EventLogger records authorization-relevant events. Implementations must not
// block the caller.
type EventLogger interface {
	Log(event string, metadata map[string]any)
}

// Observer receives every resolution outcome, e.g. for metrics.
type Observer interface {
	ObserveResolution(res Resolution)
}
