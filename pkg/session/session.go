// Package session verifies signed session tokens and exposes the resolved
// user id to request handlers. Token issuance belongs to the identity
// provider; this package only checks signatures and expiry.
package session

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthenticated   = errors.New("session: missing or invalid session token")
	ErrMissingSigningKey = errors.New("session: signing key is required")
)

// Config describes session verification settings.
type Config struct {
	SigningKey string `env:"SESSION_SIGNING_KEY,required"`
}

// Verifier validates HS256 session tokens.
type Verifier struct {
	key []byte
}

// NewVerifier creates a Verifier from the config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Verifier{key: []byte(cfg.SigningKey)}, nil
}

// Verify checks the token signature and temporal claims and returns the
// subject (user id). Any failure maps to ErrUnauthenticated; callers never
// learn why a token was rejected.
func (v *Verifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthenticated
	}
	return sub, nil
}

// Issue creates a signed token for the given subject. Exists for tests and
// local tooling; production tokens come from the identity provider.
func (v *Verifier) Issue(subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

type userIDCtxKey struct{}

// WithUserID stores the resolved user id in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey{}, userID)
}

// UserIDFromContext returns the user id resolved by the auth middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDCtxKey{}).(string)
	return id, ok && id != ""
}
