// Package geocode resolves free-text location labels (country names, cities)
// to coordinates via Nominatim, Google and a static override table.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes location labels.
type Client interface {
	// Geocode resolves a single label. An unresolvable label is not an
	// error: it returns a Result with Matched=false.
	Geocode(ctx context.Context, label string) (*Result, error)
}

// Result holds the geocoding output for a label.
type Result struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Source      string    `json:"source"`  // "nominatim", "google", "static"
	Quality     string    `json:"quality"` // "country", "city", "approximate", ...
	DisplayName string    `json:"display_name,omitempty"`
	Matched     bool      `json:"matched"`
	CachedAt    time.Time `json:"cached_at,omitempty"`
}

// Option configures an HTTP-backed provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithRateLimit sets the client-side requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

func newOptions(baseURL string, rps float64, opts []Option) *options {
	o := &options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
	WithRateLimit(rps)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}
