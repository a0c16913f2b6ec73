package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_Deterministic(t *testing.T) {
	key1 := CacheKey("Germany")
	key2 := CacheKey("Germany")
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64) // SHA-256 hex is 64 chars
}

func TestCacheKey_Normalized(t *testing.T) {
	assert.Equal(t, CacheKey("United States"), CacheKey("  UNITED   states "))
	// Decomposed "ô" (o + combining circumflex) matches the precomposed form.
	assert.Equal(t, CacheKey("C\u00f4te d'Ivoire"), CacheKey("Co\u0302te d'Ivoire"))
	assert.Equal(t, CacheKey("straße"), CacheKey("STRASSE"))
}

func TestCacheKey_DifferentLabels(t *testing.T) {
	assert.NotEqual(t, CacheKey("Austria"), CacheKey("Australia"))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "new zealand", NormalizeLabel(" New\tZealand "))
	assert.Equal(t, "", NormalizeLabel("   "))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	got, err := c.GetLocation(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.PutLocation(ctx, "k", "Chile", &Result{Latitude: -31.7, Longitude: -71.0, Matched: true}))
	got, err = c.GetLocation(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Matched)
	assert.InDelta(t, -31.7, got.Latitude, 0)
	assert.Equal(t, 1, c.Len())
}
