package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Status tags a Resolution.
type Status int

const (
	Unauthenticated Status = iota
	Authenticated
)

// Reason explains why a resolution is unauthenticated.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMissingCredential Reason = "missing_credential"
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonIncompleteClaims  Reason = "incomplete_claims"
	ReasonUnknownTenant     Reason = "unknown_tenant"
)

// Resolution is either Authenticated with a TenantContext, or Unauthenticated
// with a Reason. The boundary decides how to answer an Unauthenticated one.
type Resolution struct {
	Status  Status
	Context TenantContext
	Reason  Reason
}

// Authenticated reports whether the resolution carries a TenantContext.
func (r Resolution) Authenticated() bool {
	return r.Status == Authenticated
}

func authenticated(tc TenantContext) Resolution {
	return Resolution{Status: Authenticated, Context: tc}
}

func unauthenticated(reason Reason) Resolution {
	return Resolution{Status: Unauthenticated, Reason: reason}
}

// RequestSnapshot is the request-scoped input to the resolver: cookies and the
// Authorization header, captured explicitly so the resolver never reaches
// into a live request.
type RequestSnapshot struct {
	Cookies       map[string]string
	Authorization string
}

// SnapshotFromRequest captures the parts of r the resolver reads.
func SnapshotFromRequest(r *http.Request) RequestSnapshot {
	snap := RequestSnapshot{
		Cookies:       make(map[string]string),
		Authorization: r.Header.Get("Authorization"),
	}
	for _, c := range r.Cookies() {
		if _, seen := snap.Cookies[c.Name]; !seen {
			snap.Cookies[c.Name] = c.Value
		}
	}
	return snap
}

// Resolver turns a request snapshot into a Resolution. It holds no
// per-request state and re-verifies the credential on every call.
type Resolver struct {
	verifier   Verifier
	cookieName string
	tenants    TenantChecker
	events     EventLogger
	observer   Observer
}

// ResolverOption configures optional collaborators.
type ResolverOption func(*Resolver)

// WithTenantChecker makes the resolver reject claims naming a tenant that no
// longer exists.
func WithTenantChecker(tc TenantChecker) ResolverOption {
	return func(r *Resolver) { r.tenants = tc }
}

// WithEventLogger sends failed resolutions to an activity sink.
func WithEventLogger(l EventLogger) ResolverOption {
	return func(r *Resolver) { r.events = l }
}

// WithObserver reports every resolution outcome.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a resolver reading the credential from cookieName.
func NewResolver(v Verifier, cookieName string, opts ...ResolverOption) *Resolver {
	r := &Resolver{verifier: v, cookieName: cookieName}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve establishes who is asking and for which tenant. The returned error
// is non-nil only when a collaborator fails (e.g. the tenant lookup); an
// invalid or absent credential is an Unauthenticated resolution, not an
// error.
func (r *Resolver) Resolve(ctx context.Context, snap RequestSnapshot) (Resolution, error) {
	res, err := r.resolve(ctx, snap)
	if err != nil {
		return Resolution{}, err
	}
	if r.observer != nil {
		r.observer.ObserveResolution(res)
	}
	if !res.Authenticated() && res.Reason != ReasonMissingCredential && r.events != nil {
		r.events.Log("auth.rejected", map[string]any{"reason": string(res.Reason)})
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, snap RequestSnapshot) (Resolution, error) {
	token := credential(snap, r.cookieName)
	if token == "" {
		return unauthenticated(ReasonMissingCredential), nil
	}

	claims, err := r.verifier.Verify(token)
	if err != nil {
		return unauthenticated(ReasonInvalidCredential), nil
	}
	if !claims.Complete() {
		return unauthenticated(ReasonIncompleteClaims), nil
	}

	if r.tenants != nil {
		ok, err := r.tenants.TenantExists(ctx, claims.TenantID)
		if err != nil {
			return Resolution{}, fmt.Errorf("checking tenant: %w", err)
		}
		if !ok {
			return unauthenticated(ReasonUnknownTenant), nil
		}
	}

	return authenticated(NewTenantContext(claims)), nil
}

// RequireOwner resolves the caller and admits only the owner role. It
// returns ErrUnauthenticated when there is no valid session and an error
// matching ErrRoleDenied for any other role.
func (r *Resolver) RequireOwner(ctx context.Context, snap RequestSnapshot) (TenantContext, error) {
	res, err := r.Resolve(ctx, snap)
	if err != nil {
		return TenantContext{}, err
	}
	if err := RequireOwner(res); err != nil {
		if r.events != nil && res.Authenticated() {
			r.events.Log("gate.role_denied", map[string]any{
				"user_id":   res.Context.UserID,
				"tenant_id": res.Context.TenantID,
				"role":      string(res.Context.Role),
			})
		}
		return TenantContext{}, err
	}
	return res.Context, nil
}

// RequireOwner checks an existing resolution against the owner role.
func RequireOwner(res Resolution) error {
	if !res.Authenticated() {
		return ErrUnauthenticated
	}
	if !res.Context.IsOwner() {
		return &RoleError{Have: res.Context.Role, Need: RoleOwner}
	}
	return nil
}

// RequireRole admits tc when its role is at least min.
func RequireRole(tc TenantContext, min Role) error {
	if !tc.Role.AtLeast(min) {
		return &RoleError{Have: tc.Role, Need: min}
	}
	return nil
}

// credential reads the session cookie, falling back to a bearer token.
func credential(snap RequestSnapshot, cookieName string) string {
	if v := strings.TrimSpace(snap.Cookies[cookieName]); v != "" {
		return v
	}
	return extractBearerToken(snap.Authorization)
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
