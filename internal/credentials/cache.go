// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package credentials caches short-lived bearer tokens per application identity.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrCredential is returned when no token can be obtained for an identity.
var ErrCredential = errors.New("credential error")

const (
	// DefaultSafetyMargin is subtracted from the issued lifetime so a token never expires mid-request.
	DefaultSafetyMargin = 300 * time.Second
	defaultFetchTimeout = 15 * time.Second
)

// Identity is an application id and its secret.
type Identity struct {
	AppID  string
	Secret string
}

// Token is an issued bearer token. ExpiresAt already has the safety margin applied.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token may still be used at now.
func (t Token) ValidAt(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// Issuer obtains a fresh token and its lifetime from the remote issuance endpoint.
type Issuer interface {
	IssueToken(ctx context.Context, id Identity) (string, time.Duration, error)
}

// Cache serves tokens from a Store and refreshes them through an Issuer.
// Concurrent misses for the same identity share one issuance call.
type Cache struct {
	issuer       Issuer
	store        Store
	margin       time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
	logger       zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithSafetyMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithFetchTimeout bounds one issuance call. The call is detached from the
// caller's cancellation because other callers may be waiting on it.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// NewCache returns a Cache. A nil store means an in-memory store without janitor.
func NewCache(issuer Issuer, store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore(0)
	}
	c := &Cache{
		issuer:       issuer,
		store:        store,
		margin:       DefaultSafetyMargin,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       log.WithComponent("credentials"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid bearer token for id, issuing a new one on miss or expiry.
func (c *Cache) Token(ctx context.Context, id Identity) (string, error) {
	if strings.TrimSpace(id.AppID) == "" || strings.TrimSpace(id.Secret) == "" {
		return "", fmt.Errorf("%w: app id and secret are required", ErrCredential)
	}

	if tok, ok := c.lookup(ctx, id.AppID); ok {
		metrics.IncTokenCache("hit")
		return tok.Value, nil
	}
	metrics.IncTokenCache("miss")

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id.AppID, func() (any, error) {
		// Another flight may have stored a token between our lookup and this call.
		if tok, ok := c.lookup(flightCtx, id.AppID); ok {
			return tok.Value, nil
		}
		return c.refresh(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrCredential, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			metrics.IncTokenCache("error")
			return "", res.Err
		}
		if res.Shared {
			metrics.IncTokenCache("shared")
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token for id, forcing the next Token call to refresh.
func (c *Cache) Invalidate(ctx context.Context, id Identity) {
	c.store.Delete(ctx, id.AppID)
}

func (c *Cache) lookup(ctx context.Context, key string) (Token, bool) {
	tok, ok := c.store.Get(ctx, key)
	if !ok || !tok.ValidAt(c.now()) {
		return Token{}, false
	}
	return tok, true
}

func (c *Cache) refresh(ctx context.Context, id Identity) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	issuedAt := c.now()
	value, ttl, err := c.issuer.IssueToken(fetchCtx, id)
	if err != nil {
		return "", fmt.Errorf("%w: issue token for %s: %w", ErrCredential, id.AppID, err)
	}
	if value == "" {
		return "", fmt.Errorf("%w: issuance for %s returned an empty token", ErrCredential, id.AppID)
	}

	tok := Token{Value: value, ExpiresAt: issuedAt.Add(ttl - c.margin)}
	logger := c.logger.With().Str(log.FieldAppID, id.AppID).Logger()
	if !tok.ValidAt(issuedAt) {
		// Lifetime shorter than the margin: usable for this caller, not worth caching.
		logger.Warn().Dur("ttl", ttl).Dur("margin", c.margin).Msg("issued token lifetime is within the safety margin, not caching")
		return value, nil
	}
	c.store.Put(ctx, id.AppID, tok)
	logger.Info().Time("expires_at", tok.ExpiresAt).Msg("issued new access token")
	return value, nil
}
