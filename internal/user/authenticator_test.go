package user

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/saasboard/internal/auth"
)

type fakeLookup struct {
	users map[string]*User
	err   error
}

func (f *fakeLookup) GetByEmail(ctx context.Context, email string) (*User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, fmt.Errorf("getting user by email: %w", ErrNotFound)
	}
	return u, nil
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return string(h)
}

func TestAuthenticate(t *testing.T) {
	alice := &User{ID: "u1", TenantID: "t1", Email: "alice@example.com", PasswordHash: hashed(t, "s3cret"), Role: auth.RoleAdmin}
	a := NewAuthenticator(&fakeLookup{users: map[string]*User{alice.Email: alice}})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "alice@example.com", "s3cret", nil},
		{"wrong password", "alice@example.com", "nope", ErrInvalidCredentials},
		{"unknown email", "bob@example.com", "s3cret", ErrInvalidCredentials},
		{"empty password", "alice@example.com", "", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := a.Authenticate(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && u.ID != "u1" {
				t.Errorf("unexpected user %+v", u)
			}
		})
	}
}

func TestAuthenticate_StoreErrorIsNotCredentialError(t *testing.T) {
	a := NewAuthenticator(&fakeLookup{err: errors.New("connection refused")})
	_, err := a.Authenticate(context.Background(), "alice@example.com", "x")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestCheckPassword(t *testing.T) {
	u := &User{PasswordHash: hashed(t, "correct horse")}
	if !CheckPassword(u, "correct horse") {
		t.Error("expected match")
	}
	if CheckPassword(u, "battery staple") {
		t.Error("expected mismatch")
	}
}
