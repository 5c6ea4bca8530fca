package user

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// Callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Lookup is the subset of Store used by Authenticator.
type Lookup interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Authenticator checks login credentials.
type Authenticator struct {
	users     Lookup
	dummyHash []byte
}

// NewAuthenticator creates an Authenticator over the given user lookup.
func NewAuthenticator(users Lookup) *Authenticator {
	// Compared against when the email is unknown so both paths cost a bcrypt run.
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &Authenticator{users: users, dummyHash: h}
}

// Authenticate returns the user for email when password matches.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
