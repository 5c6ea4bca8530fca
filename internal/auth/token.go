package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionClaims is the JWT shape of a session credential.
type sessionClaims struct {
	jwt.RegisteredClaims

	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role,omitempty"`
	Plan     string `json:"plan,omitempty"`
}

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid session token")

// JWTVerifier issues and verifies HS256 session tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time // injectable clock for testing
}

// NewJWTVerifier creates a verifier signing with secret. Tokens it issues are
// valid for ttl.
func NewJWTVerifier(secret, issuer string, ttl time.Duration) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a session token for the given claims and returns it together
// with its expiry.
func (v *JWTVerifier) Issue(c ClaimSet) (string, time.Time, error) {
	if !c.Complete() {
		return "", time.Time{}, errors.New("issuing token: user id and tenant id are required")
	}

	now := v.now()
	expiresAt := now.Add(v.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:   c.UserID,
		TenantID: c.TenantID,
		Role:     c.Role,
		Plan:     c.Plan,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry. The returned claim
// set may still be incomplete; callers decide what to do with that.
func (v *JWTVerifier) Verify(token string) (ClaimSet, error) {
	if token == "" {
		return ClaimSet{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return ClaimSet{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Plan:     claims.Plan,
	}, nil
}
