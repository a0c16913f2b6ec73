package capture

import (
	"context"
	"time"
)

// LaunchOptions configures a browser session.
type LaunchOptions struct {
	Width   int
	Height  int
	Timeout time.Duration // navigation timeout
}

// Driver starts browser sessions.
type Driver interface {
	Launch(ctx context.Context, browser Browser, opts LaunchOptions) (Page, error)
}

// Page is a single open browser tab.
type Page interface {
	// Open navigates to url. When waitIdle is set it returns once network
	// activity has settled.
	Open(ctx context.Context, url string, waitIdle bool) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}
