// Package identity carries the authenticated user through a request context.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a token cannot be validated.
var ErrUnauthorized = errors.New("unauthorized")

// User is the account a request acts on behalf of.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type ctxKey struct{}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored in ctx. ok is false when there is none
// or it has no id.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	if !ok || u.ID == "" {
		return User{}, false
	}
	return u, true
}

// Provider answers who the current user is.
type Provider interface {
	CurrentUser(ctx context.Context) (User, bool)
}

// ContextProvider reads the user placed in the context by the HTTP layer.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (User, bool) {
	return FromContext(ctx)
}

// Resolver maps an external login to a stable user id, creating the
// account on first sight.
type Resolver interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (string, error)
}

// LoginResolver uses the login itself as the user id. It serves the
// in-memory storage driver, which has no users table.
type LoginResolver struct{}

func (LoginResolver) GetOrCreateUser(_ context.Context, login, _ string) (string, error) {
	return login, nil
}

// Claims is the payload of an ironlog bearer token.
type Claims struct {
	Login       string `json:"login"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for login valid for ttl.
func IssueToken(secret []byte, login, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Login:       login,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates token and returns its claims.
func ParseToken(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Login == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
