package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

// --- fakes ---

type fakeTenants struct {
	known map[string]bool
	err   error
}

func (f *fakeTenants) TenantExists(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) Log(event string, metadata map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func newTestVerifier() *JWTVerifier {
	return NewJWTVerifier(testSecret, "saasboard-test", time.Hour)
}

func issue(t *testing.T, v *JWTVerifier, c ClaimSet) string {
	t.Helper()
	token, _, err := v.Issue(c)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return token
}

// signRaw signs claims without Issue's completeness check.
func signRaw(t *testing.T, method jwt.SigningMethod, secret string, claims sessionClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func cookieSnap(token string) RequestSnapshot {
	return RequestSnapshot{Cookies: map[string]string{"token": token}}
}

// --- TenantContext defaults ---

func TestNewTenantContext_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		claims   ClaimSet
		wantRole Role
		wantPlan string
	}{
		{"both absent", ClaimSet{UserID: "u1", TenantID: "t1"}, DefaultRole, DefaultPlan},
		{"role present", ClaimSet{UserID: "u1", TenantID: "t1", Role: "ADMIN"}, RoleAdmin, DefaultPlan},
		{"plan present", ClaimSet{UserID: "u1", TenantID: "t1", Plan: "PRO"}, DefaultRole, "PRO"},
		{"both present", ClaimSet{UserID: "u1", TenantID: "t1", Role: "OWNER", Plan: "ENTERPRISE"}, RoleOwner, "ENTERPRISE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewTenantContext(tt.claims)
			if tc.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", tc.Role, tt.wantRole)
			}
			if tc.Plan != tt.wantPlan {
				t.Errorf("plan = %q, want %q", tc.Plan, tt.wantPlan)
			}
			if tc.UserID != "u1" || tc.TenantID != "t1" {
				t.Errorf("ids not carried over: %+v", tc)
			}
		})
	}
}

func TestDefaultRoleIsLeastPrivileged(t *testing.T) {
	for _, r := range []Role{RoleManager, RoleAdmin, RoleOwner} {
		if DefaultRole.AtLeast(r) {
			t.Errorf("DefaultRole should rank below %s", r)
		}
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleOwner.AtLeast(RoleAdmin) {
		t.Error("owner should satisfy admin")
	}
	if RoleStaff.AtLeast(RoleManager) {
		t.Error("staff should not satisfy manager")
	}
	if Role("ROOT").AtLeast(RoleStaff) {
		t.Error("unknown role should satisfy nothing")
	}
	if Role("ROOT").Valid() {
		t.Error("unknown role should not be valid")
	}
}

// --- JWTVerifier ---

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := newTestVerifier()
	want := ClaimSet{UserID: "u1", TenantID: "t1", Role: "ADMIN", Plan: "PRO"}

	got, err := v.Verify(issue(t, v, want))
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if got != want {
		t.Errorf("claims = %+v, want %+v", got, want)
	}
}

func TestJWTVerifier_IssueRequiresIDs(t *testing.T) {
	v := newTestVerifier()
	if _, _, err := v.Issue(ClaimSet{UserID: "u1"}); err == nil {
		t.Error("expected error issuing token without tenant id")
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := newTestVerifier()
	valid := issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1"})

	expiredIssuer := newTestVerifier()
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired := issue(t, expiredIssuer, ClaimSet{UserID: "u1", TenantID: "t1"})

	otherKey := issue(t, NewJWTVerifier("another-secret-abcdefgh", "saasboard-test", time.Hour),
		ClaimSet{UserID: "u1", TenantID: "t1"})
	otherIssuer := issue(t, NewJWTVerifier(testSecret, "someone-else", time.Hour),
		ClaimSet{UserID: "u1", TenantID: "t1"})

	now := time.Now()
	wrongAlg := signRaw(t, jwt.SigningMethodHS512, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "saasboard-test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserID:   "u1",
		TenantID: "t1",
	})
	noExpiry := signRaw(t, jwt.SigningMethodHS256, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "saasboard-test"},
		UserID:           "u1",
		TenantID:         "t1",
	})

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered", valid + "x"},
		{"expired", expired},
		{"wrong key", otherKey},
		{"wrong issuer", otherIssuer},
		{"wrong algorithm", wrongAlg},
		{"no expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

// --- Resolver ---

func TestResolve_MissingCredential(t *testing.T) {
	r := NewResolver(newTestVerifier(), "token")

	snaps := []RequestSnapshot{
		{},
		{Cookies: map[string]string{}},
		{Cookies: map[string]string{"other": "value"}},
		{Cookies: map[string]string{"token": "   "}},
		{Authorization: "Basic abc"},
	}
	for _, snap := range snaps {
		res, err := r.Resolve(context.Background(), snap)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if res.Authenticated() {
			t.Fatalf("expected unauthenticated for %+v", snap)
		}
		if res.Reason != ReasonMissingCredential {
			t.Errorf("reason = %q, want %q", res.Reason, ReasonMissingCredential)
		}
		if res.Context != (TenantContext{}) {
			t.Errorf("expected no tenant context, got %+v", res.Context)
		}
	}
}

func TestResolve_InvalidCredential(t *testing.T) {
	v := newTestVerifier()
	r := NewResolver(v, "token")

	missingTenant := signRaw(t, jwt.SigningMethodHS256, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "saasboard-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "u1",
	})
	missingUser := signRaw(t, jwt.SigningMethodHS256, testSecret, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "saasboard-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "t1",
	})

	tests := []struct {
		name   string
		token  string
		reason Reason
	}{
		{"bad signature", issue(t, NewJWTVerifier("wrong-secret-0000000000", "saasboard-test", time.Hour), ClaimSet{UserID: "u1", TenantID: "t1"}), ReasonInvalidCredential},
		{"garbage", "abc.def.ghi", ReasonInvalidCredential},
		{"missing tenant id", missingTenant, ReasonIncompleteClaims},
		{"missing user id", missingUser, ReasonIncompleteClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), cookieSnap(tt.token))
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if res.Authenticated() {
				t.Fatal("expected unauthenticated")
			}
			if res.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestResolve_AppliesDefaults(t *testing.T) {
	v := newTestVerifier()
	r := NewResolver(v, "token")

	res, err := r.Resolve(context.Background(), cookieSnap(issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1"})))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !res.Authenticated() {
		t.Fatalf("expected authenticated, got reason %q", res.Reason)
	}
	want := TenantContext{UserID: "u1", TenantID: "t1", Role: DefaultRole, Plan: DefaultPlan}
	if res.Context != want {
		t.Errorf("context = %+v, want %+v", res.Context, want)
	}
}

func TestResolve_BearerFallback(t *testing.T) {
	v := newTestVerifier()
	r := NewResolver(v, "token")
	token := issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1", Role: "ADMIN"})

	res, err := r.Resolve(context.Background(), RequestSnapshot{Authorization: "Bearer " + token})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !res.Authenticated() || res.Context.Role != RoleAdmin {
		t.Errorf("expected authenticated admin, got %+v", res)
	}
}

func TestResolve_CookieTakesPrecedence(t *testing.T) {
	v := newTestVerifier()
	r := NewResolver(v, "token")
	cookie := issue(t, v, ClaimSet{UserID: "cookie-user", TenantID: "t1"})
	bearer := issue(t, v, ClaimSet{UserID: "bearer-user", TenantID: "t1"})

	res, err := r.Resolve(context.Background(), RequestSnapshot{
		Cookies:       map[string]string{"token": cookie},
		Authorization: "Bearer " + bearer,
	})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Context.UserID != "cookie-user" {
		t.Errorf("expected cookie credential to win, got %q", res.Context.UserID)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	v := newTestVerifier()
	r := NewResolver(v, "token")
	snap := cookieSnap(issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1"}))

	first, err := r.Resolve(context.Background(), snap)
	if err != nil {
		t.Fatalf("first Resolve() error: %v", err)
	}
	second, err := r.Resolve(context.Background(), snap)
	if err != nil {
		t.Fatalf("second Resolve() error: %v", err)
	}
	if first != second {
		t.Errorf("resolutions differ: %+v vs %+v", first, second)
	}
}

func TestResolve_TenantChecker(t *testing.T) {
	v := newTestVerifier()
	token := issue(t, v, ClaimSet{UserID: "u1", TenantID: "gone"})

	r := NewResolver(v, "token", WithTenantChecker(&fakeTenants{known: map[string]bool{"t1": true}}))
	res, err := r.Resolve(context.Background(), cookieSnap(token))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Authenticated() || res.Reason != ReasonUnknownTenant {
		t.Errorf("expected unknown_tenant, got %+v", res)
	}

	failing := NewResolver(v, "token", WithTenantChecker(&fakeTenants{err: errors.New("db down")}))
	if _, err := failing.Resolve(context.Background(), cookieSnap(token)); err == nil {
		t.Error("expected collaborator error to propagate")
	}
}

func TestResolve_LogsRejections(t *testing.T) {
	logger := &recordingLogger{}
	r := NewResolver(newTestVerifier(), "token", WithEventLogger(logger))

	_, _ = r.Resolve(context.Background(), RequestSnapshot{})
	_, _ = r.Resolve(context.Background(), cookieSnap("garbage"))

	got := logger.names()
	if len(got) != 1 || got[0] != "auth.rejected" {
		t.Errorf("expected a single auth.rejected event, got %v", got)
	}
}

// --- Role gate ---

func TestRequireOwner(t *testing.T) {
	tests := []struct {
		role    string
		wantErr error
	}{
		{"OWNER", nil},
		{"ADMIN", ErrRoleDenied},
		{"MANAGER", ErrRoleDenied},
		{"STAFF", ErrRoleDenied},
		{"", ErrRoleDenied},
		{"owner", ErrRoleDenied},
		{"SUPERUSER", ErrRoleDenied},
	}

	v := newTestVerifier()
	r := NewResolver(v, "token")

	for _, tt := range tests {
		t.Run("role="+tt.role, func(t *testing.T) {
			token := issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1", Role: tt.role})
			tc, err := r.RequireOwner(context.Background(), cookieSnap(token))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if !tc.IsOwner() {
					t.Errorf("expected owner context, got %+v", tc)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			var roleErr *RoleError
			if !errors.As(err, &roleErr) || roleErr.Need != RoleOwner {
				t.Errorf("expected *RoleError needing OWNER, got %v", err)
			}
		})
	}
}

func TestRequireOwner_Unauthenticated(t *testing.T) {
	r := NewResolver(newTestVerifier(), "token")
	_, err := r.RequireOwner(context.Background(), RequestSnapshot{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if errors.Is(err, ErrRoleDenied) {
		t.Error("unauthenticated must not look like a role denial")
	}
}

func TestRequireOwner_LogsDenial(t *testing.T) {
	v := newTestVerifier()
	logger := &recordingLogger{}
	r := NewResolver(v, "token", WithEventLogger(logger))

	_, _ = r.RequireOwner(context.Background(), cookieSnap(issue(t, v, ClaimSet{UserID: "u1", TenantID: "t1", Role: "ADMIN"})))

	got := logger.names()
	if len(got) != 1 || got[0] != "gate.role_denied" {
		t.Errorf("expected gate.role_denied, got %v", got)
	}
}

func TestRequireRole(t *testing.T) {
	tc := TenantContext{UserID: "u1", TenantID: "t1", Role: RoleManager}
	if err := RequireRole(tc, RoleStaff); err != nil {
		t.Errorf("manager should pass staff gate: %v", err)
	}
	if err := RequireRole(tc, RoleAdmin); !errors.Is(err, ErrRoleDenied) {
		t.Errorf("manager should fail admin gate, got %v", err)
	}
}
