package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// GoogleProvider geocodes labels with the Google Geocoding API. It is a
// fallback for labels Nominatim cannot place.
type GoogleProvider struct {
	key  string
	opts *options
}

// NewGoogle creates a Google provider. It is unavailable without a key.
func NewGoogle(key string, opts ...Option) *GoogleProvider {
	return &GoogleProvider{key: key, opts: newOptions(googleGeocodeURL, 10, opts)}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.key != "" }

// Geocode implements Provider. ZERO_RESULTS is a miss; quota and key
// problems are errors so the cascade moves on without caching a miss.
func (p *GoogleProvider) Geocode(ctx context.Context, label string) (*Result, error) {
	if p.key == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := p.opts.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	q := url.Values{"address": {label}, "key": {p.key}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.opts.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Source: "google"}, nil
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return &Result{Source: "google"}, nil
	}

	top := body.Results[0]
	return &Result{
		Latitude:    top.Geometry.Location.Lat,
		Longitude:   top.Geometry.Location.Lng,
		Source:      "google",
		Quality:     googlePlaceQuality(top.Types),
		DisplayName: top.FormattedAddress,
		Matched:     true,
	}, nil
}

// googlePlaceTypes lists address types from most to least specific.
var googlePlaceTypes = []struct{ typ, quality string }{
	{"street_address", "address"},
	{"premise", "address"},
	{"sublocality", "city"},
	{"locality", "city"},
	{"postal_town", "city"},
	{"administrative_area_level_2", "region"},
	{"administrative_area_level_1", "region"},
	{"country", "country"},
}

// googlePlaceQuality maps the most specific address type to our quality names.
func googlePlaceQuality(types []string) string {
	have := make(map[string]bool, len(types))
	for _, t := range types {
		have[t] = true
	}
	for _, pt := range googlePlaceTypes {
		if have[pt.typ] {
			return pt.quality
		}
	}
	return "approximate"
}
