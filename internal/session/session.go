// Package session resolves the authenticated tenant for remote-facing
// operations. The token travels in the request context; verification is
// HS256 with a shared signing key.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/cloudsync"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// WithToken attaches a raw bearer token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// TokenFromContext extracts the raw token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	return token, ok && token != ""
}

// Config for the JWT provider.
type Config struct {
	SigningKey []byte
	Issuer     string
}

// Provider verifies session tokens and yields the tenant id from the
// subject claim.
type Provider struct {
	signingKey []byte
	issuer     string
	nowFn      func() time.Time
}

// New wires a Provider.
func New(cfg Config) (*Provider, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("session: signing key is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("session: issuer is required")
	}
	return &Provider{
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// TenantID verifies the context token and returns its subject. Any
// verification failure maps to ErrNotAuthenticated: the caller only
// needs to know there is no usable session.
func (provider *Provider) TenantID(ctx context.Context) (bottlebook.TenantID, error) {
	raw, ok := TokenFromContext(ctx)
	if !ok {
		return bottlebook.TenantID{}, fmt.Errorf("%w: no session token", cloudsync.ErrNotAuthenticated)
	}
	parsed, err := jwt.Parse(raw,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return provider.signingKey, nil
		},
		jwt.WithIssuer(provider.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(provider.nowFn),
	)
	if err != nil || !parsed.Valid {
		return bottlebook.TenantID{}, fmt.Errorf("%w: %v", cloudsync.ErrNotAuthenticated, err)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return bottlebook.TenantID{}, fmt.Errorf("%w: missing subject claim", cloudsync.ErrNotAuthenticated)
	}
	tenantID, err := bottlebook.NewTenantID(subject)
	if err != nil {
		return bottlebook.TenantID{}, fmt.Errorf("%w: %v", cloudsync.ErrNotAuthenticated, err)
	}
	return tenantID, nil
}

// StaticProvider always answers with one tenant. Used by single-user
// deployments where the device itself is the session.
type StaticProvider struct {
	tenantID bottlebook.TenantID
}

// NewStaticProvider wires a StaticProvider.
func NewStaticProvider(tenantID bottlebook.TenantID) *StaticProvider {
	return &StaticProvider{tenantID: tenantID}
}

// TenantID returns the fixed tenant.
func (provider *StaticProvider) TenantID(ctx context.Context) (bottlebook.TenantID, error) {
	return provider.tenantID, nil
}
