// Package windsor provides a client for the Windsor.ai connectors API.
package windsor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the Windsor.ai connector operations.
type Client interface {
	// Connectors fetches rows for a connector over a date range.
	Connectors(ctx context.Context, q Query) (*Response, error)
}

// Query selects the rows returned by Connectors.
type Query struct {
	Connector string   // e.g. "google_ads"
	DateFrom  string   // YYYY-MM-DD
	DateTo    string   // YYYY-MM-DD
	Fields    []string // e.g. date, country, clicks
}

// Record is a single row as returned by the API.
type Record map[string]any

// Response is the parsed connectors response.
type Response struct {
	Data []Record `json:"data"`
}

// APIError is returned when the API answers with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("windsor: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the Windsor client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Windsor.ai connectors client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://connectors.windsor.ai",
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Connectors(ctx context.Context, q Query) (*Response, error) {
	if q.Connector == "" {
		return nil, eris.New("windsor: connector is required")
	}
	if len(q.Fields) == 0 {
		return nil, eris.New("windsor: at least one field is required")
	}

	params := url.Values{
		"api_key":   {c.apiKey},
		"date_from": {q.DateFrom},
		"date_to":   {q.DateTo},
		"fields":    {strings.Join(q.Fields, ",")},
	}
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(q.Connector), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "windsor: create request")
	}
	req.Header.Set("Accept", "application/json")

	zap.L().Debug("windsor: fetching connector data",
		zap.String("connector", q.Connector),
		zap.String("date_from", q.DateFrom),
		zap.String("date_to", q.DateTo),
		zap.Strings("fields", q.Fields),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "windsor: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "windsor: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var result Response
	if err := dec.Decode(&result); err != nil {
		return nil, eris.Wrap(err, "windsor: unmarshal response")
	}

	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
