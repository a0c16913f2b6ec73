package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Cache persists geocode results keyed by CacheKey. A missing entry is
// reported as (nil, nil).
type Cache interface {
	GetLocation(ctx context.Context, key string) (*Result, error)
	PutLocation(ctx context.Context, key, label string, result *Result) error
}

var folder = cases.Fold()

// NormalizeLabel canonicalizes a label for matching: Unicode NFC, case
// folded, inner whitespace collapsed.
func NormalizeLabel(label string) string {
	s := norm.NFC.String(label)
	s = strings.Join(strings.Fields(s), " ")
	return folder.String(s)
}

// CacheKey returns SHA-256 hex of the normalized label for cache lookup.
func CacheKey(label string) string {
	h := sha256.Sum256([]byte(NormalizeLabel(label)))
	return fmt.Sprintf("%x", h)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Result)}
}

// GetLocation implements Cache.
func (c *MemoryCache) GetLocation(_ context.Context, key string) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// PutLocation implements Cache.
func (c *MemoryCache) PutLocation(_ context.Context, key, _ string, result *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *result
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
