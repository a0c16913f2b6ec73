package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatim_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Germany", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"51.1638175","lon":"10.4478313","display_name":"Deutschland","addresstype":"country"}]`)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL+"/"), WithRateLimit(0))

	result, err := p.Geocode(context.Background(), "Germany")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 51.1638, result.Latitude, 0.0001)
	assert.InDelta(t, 10.4478, result.Longitude, 0.0001)
	assert.Equal(t, "nominatim", result.Source)
	assert.Equal(t, "country", result.Quality)
	assert.Equal(t, "Deutschland", result.DisplayName)
}

func TestNominatim_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(0))

	result, err := p.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
}

func TestNominatim_CustomUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL), WithUserAgent("clickmap-test"), WithRateLimit(0))
	_, err := p.Geocode(context.Background(), "Spain")
	require.NoError(t, err)
	assert.Equal(t, "clickmap-test", got)
}

func TestNominatim_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := p.Geocode(context.Background(), "Spain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestNominatim_BadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"north","lon":"10.4"}]`)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := p.Geocode(context.Background(), "Germany")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestNominatim_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(0.01))

	// First call consumes the single burst token.
	_, err := p.Geocode(context.Background(), "Spain")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Geocode(ctx, "France")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestNewNominatim_Defaults(t *testing.T) {
	p := NewNominatim()
	assert.Equal(t, DefaultNominatimURL, p.opts.baseURL)
	assert.Equal(t, DefaultUserAgent, p.opts.userAgent)
	assert.True(t, p.Available())
	assert.InDelta(t, 1.0, float64(p.opts.limiter.Limit()), 0.001)
}

func TestWithTimeout(t *testing.T) {
	p := NewNominatim(WithTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, p.opts.httpClient.Timeout)
}
