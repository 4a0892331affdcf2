// Package auth carries the signed-in identity. The news pipeline never
// branches on it; bookmarks require it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WessleyAI/technews/engine/domain"
)

// Identity is the current user.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Provider exposes the current identity. A nil identity with a nil error
// means anonymous.
type Provider interface {
	Current(ctx context.Context) (*Identity, error)
	Loading() bool
}

type ctxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the attached identity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// ContextProvider reads the identity a middleware attached to the request
// context. It never loads.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (*Identity, error) { return FromContext(ctx), nil }
func (ContextProvider) Loading() bool                                  { return false }

// Claims are the token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 bearer tokens against a shared secret. With an
// empty secret it is disabled and every caller is anonymous.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

const Issuer = "technews"

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(strings.TrimSpace(secret)), issuer: Issuer, now: time.Now}
}

// Enabled reports whether a secret is configured.
func (v *JWTVerifier) Enabled() bool { return v != nil && len(v.secret) > 0 }

// Verify parses token into an identity. Every failure wraps
// domain.ErrUnauthenticated.
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	if !v.Enabled() {
		return nil, fmt.Errorf("%w: authentication disabled", domain.ErrUnauthenticated)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Issue signs a token for id valid for ttl.
func (v *JWTVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", fmt.Errorf("%w: authentication disabled", domain.ErrUnauthenticated)
	}
	now := v.now()
	claims := &Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
