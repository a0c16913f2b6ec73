package geocode

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, label string) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers    []Provider
	cache        Cache
	cacheEnabled bool
	cacheTTL     time.Duration
	now          func() time.Time
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCascadeCache sets the cache used for results (hits and misses).
func WithCascadeCache(cache Cache) CascadeOption {
	return func(c *CascadeClient) {
		c.cache = cache
	}
}

// WithCascadeCacheEnabled enables or disables caching on the cascade client.
func WithCascadeCacheEnabled(enabled bool) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheEnabled = enabled
	}
}

// WithCascadeCacheTTLDays ignores cached entries older than days. Zero keeps
// entries forever.
func WithCascadeCacheTTLDays(days int) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheTTL = time.Duration(days) * 24 * time.Hour
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:    providers,
		cacheEnabled: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each provider in order. Empty labels
// miss without any provider call.
func (c *CascadeClient) Geocode(ctx context.Context, label string) (*Result, error) {
	if strings.TrimSpace(label) == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}

	key := CacheKey(label)
	useCache := c.cacheEnabled && c.cache != nil

	if useCache {
		cached, err := c.cache.GetLocation(ctx, key)
		if err != nil {
			zap.L().Debug("cascade: cache lookup failed", zap.String("label", label), zap.Error(err))
		} else if cached != nil && c.fresh(cached) {
			zap.L().Debug("cascade cache hit",
				zap.String("key", key[:12]),
				zap.String("label", label),
				zap.Bool("matched", cached.Matched),
			)
			return cached, nil
		}
	}

	var lastResult *Result
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, label)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.String("label", label),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if result != nil && result.Matched {
			if useCache {
				c.store(ctx, key, label, result)
			}
			return result, nil
		}
		if result != nil {
			lastResult = result
		}
	}

	// Every available provider errored: report it and cache nothing.
	if lastResult == nil && lastErr != nil {
		return nil, lastErr
	}

	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
	}
	// Only a miss from every provider is cached; an erroring provider may
	// still know the label once it recovers.
	if useCache && lastErr == nil {
		c.store(ctx, key, label, noMatch)
	}
	return noMatch, nil
}

func (c *CascadeClient) fresh(r *Result) bool {
	if c.cacheTTL <= 0 || r.CachedAt.IsZero() {
		return true
	}
	return c.now().Sub(r.CachedAt) < c.cacheTTL
}

func (c *CascadeClient) store(ctx context.Context, key, label string, result *Result) {
	entry := *result
	entry.CachedAt = c.now().UTC()
	if err := c.cache.PutLocation(ctx, key, label, &entry); err != nil {
		zap.L().Warn("cascade: store cache failed", zap.String("label", label), zap.Error(err))
	}
}
