// Package session supplies the bearer credential attached to outbound store
// calls. The credential is passed through as-is; it is never refreshed here.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/jonathan/lead-tracker/internal/types"
)

// Provider supplies a bearer credential for each outbound call.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticProvider hands out a fixed token. When the token is a JWT carrying an
// exp claim, calls made after expiry fail with a *types.SessionError.
type StaticProvider struct {
	mu    sync.RWMutex
	token string
	clock clockwork.Clock
}

// NewStatic returns a provider for token. A nil clock uses the real clock.
func NewStatic(token string, clock clockwork.Clock) *StaticProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StaticProvider{token: strings.TrimSpace(token), clock: clock}
}

// Set replaces the token, e.g. after the user signs in again.
func (p *StaticProvider) Set(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = strings.TrimSpace(token)
}

// Token returns the current token or a *types.SessionError if it is missing
// or expired.
func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		return "", &types.SessionError{Reason: "missing credential"}
	}
	if exp, ok := ExpiresAt(token); ok && !p.clock.Now().Before(exp) {
		return "", &types.SessionError{Reason: "credential expired"}
	}
	return token, nil
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// ok is false when token is not a JWT or carries no exp claim; opaque tokens
// are passed through untouched.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ErrNoProvider is returned by None.
var ErrNoProvider = errors.New("no session provider configured")

// None is a Provider that always fails with a *types.SessionError.
var None Provider = ProviderFunc(func(context.Context) (string, error) {
	return "", &types.SessionError{Reason: "missing credential", Err: ErrNoProvider}
})
