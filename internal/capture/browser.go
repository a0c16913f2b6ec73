package capture

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// Browser is a supported headless browser.
type Browser string

// Supported browsers.
const (
	Chrome  Browser = "Chrome"
	Firefox Browser = "Firefox"
)

// ErrUnknownBrowser is returned for browser names outside the supported set.
var ErrUnknownBrowser = errors.New("unknown browser")

var browsers = map[string]Browser{
	"chrome":   Chrome,
	"chromium": Chrome,
	"firefox":  Firefox,
}

// ParseBrowser resolves a configured browser name, case-insensitively.
func ParseBrowser(name string) (Browser, error) {
	b, ok := browsers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", eris.Wrapf(ErrUnknownBrowser, "capture: %q (want Chrome or Firefox)", name)
	}
	return b, nil
}
