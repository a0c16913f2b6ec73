// Package capture screenshots a rendered map in a headless browser at fixed
// intervals and hands the frames to a GIF encoder.
package capture

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/gifenc"
)

// State is the converter lifecycle position.
type State string

// Converter states.
const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateEncoding  State = "encoding"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Defaults matching one screenshot per second of animation.
const (
	DefaultFrames   = 30
	DefaultInterval = time.Second
	DefaultWidth    = 1024
	DefaultHeight   = 768
)

// Options configures capture.
type Options struct {
	Browser         Browser
	Frames          int
	Interval        time.Duration // wait before each screenshot
	Width           int
	Height          int
	ScratchRoot     string // per-run frame directories are created below this
	WaitNetworkIdle bool
	Timeout         time.Duration // navigation timeout
	KeepFrames      bool
}

func (o Options) withDefaults() Options {
	if o.Browser == "" {
		o.Browser = Chrome
	}
	if o.Frames <= 0 {
		o.Frames = DefaultFrames
	}
	if o.Interval < 0 {
		o.Interval = 0
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.ScratchRoot == "" {
		o.ScratchRoot = os.TempDir()
	}
	return o
}

// FrameEncoder assembles a directory of frames into an animation.
type FrameEncoder interface {
	EncodeDir(ctx context.Context, dir, outPath string) (*gifenc.Result, error)
}

// Frames is the output of a capture pass.
type Frames struct {
	Dir   string
	Paths []string
}

// Result describes a finished conversion.
type Result struct {
	GIF        *gifenc.Result
	Frames     int
	ScratchDir string
	Elapsed    time.Duration
}

// Converter turns an HTML map into an animated GIF.
type Converter struct {
	driver  Driver
	encoder FrameEncoder
	opts    Options

	mu    sync.Mutex
	state State

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewConverter creates an idle Converter.
func NewConverter(driver Driver, encoder FrameEncoder, opts Options) *Converter {
	return &Converter{
		driver:  driver,
		encoder: encoder,
		opts:    opts.withDefaults(),
		state:   StateIdle,
		sleep:   sleepCtx,
		newID:   func() string { return uuid.New().String() },
	}
}

// State returns the current lifecycle state.
func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Converter) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// begin moves an idle or finished converter to Capturing.
func (c *Converter) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateCapturing, StateEncoding:
		return eris.Errorf("capture: converter busy (%s)", c.state)
	}
	c.state = StateCapturing
	return nil
}

// Convert screenshots htmlPath and encodes the frames to gifPath. The scratch
// directory is removed after success unless KeepFrames is set; on failure it
// is left in place for inspection.
func (c *Converter) Convert(ctx context.Context, htmlPath, gifPath string) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := zap.L().With(zap.String("html", htmlPath), zap.String("gif", gifPath))

	frames, err := c.capture(ctx, htmlPath)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateEncoding)
	res, err := c.encoder.EncodeDir(ctx, frames.Dir, gifPath)
	if err != nil {
		c.setState(StateFailed)
		log.Warn("capture: encode failed, frames kept", zap.String("dir", frames.Dir))
		return nil, err
	}

	if !c.opts.KeepFrames {
		if rerr := os.RemoveAll(frames.Dir); rerr != nil {
			log.Warn("capture: cleanup scratch dir", zap.String("dir", frames.Dir), zap.Error(rerr))
		}
	}
	c.setState(StateDone)

	out := &Result{
		GIF:        res,
		Frames:     len(frames.Paths),
		ScratchDir: frames.Dir,
		Elapsed:    time.Since(start),
	}
	log.Info("capture: conversion complete",
		zap.Int("frames", out.Frames),
		zap.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// Capture only takes screenshots, leaving the frames on disk.
func (c *Converter) Capture(ctx context.Context, htmlPath string) (*Frames, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	frames, err := c.capture(ctx, htmlPath)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	c.setState(StateDone)
	return frames, nil
}

func (c *Converter) capture(ctx context.Context, htmlPath string) (*Frames, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, opError("navigate", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, opError("navigate", eris.Wrapf(err, "map document %s", abs))
	}

	dir := filepath.Join(c.opts.ScratchRoot, "run-"+c.newID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, opError("scratch", err)
	}

	log := zap.L().With(
		zap.String("browser", string(c.opts.Browser)),
		zap.String("dir", dir),
		zap.Int("frames", c.opts.Frames),
	)

	page, err := c.driver.Launch(ctx, c.opts.Browser, LaunchOptions{
		Width:   c.opts.Width,
		Height:  c.opts.Height,
		Timeout: c.opts.Timeout,
	})
	if err != nil {
		return nil, opError("launch", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Warn("capture: close browser", zap.Error(cerr))
		}
	}()

	u := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	if err := page.Open(ctx, u, c.opts.WaitNetworkIdle); err != nil {
		return nil, opError("navigate", err)
	}
	log.Info("capture: page loaded", zap.String("url", u))

	frames := &Frames{Dir: dir, Paths: make([]string, 0, c.opts.Frames)}
	for i := 0; i < c.opts.Frames; i++ {
		if err := c.sleep(ctx, c.opts.Interval); err != nil {
			return nil, &Error{Op: "screenshot", Frame: i, Err: err}
		}
		p := filepath.Join(dir, gifenc.FrameName(i))
		if err := page.Screenshot(ctx, p); err != nil {
			return nil, &Error{Op: "screenshot", Frame: i, Err: err}
		}
		frames.Paths = append(frames.Paths, p)
		log.Debug("capture: frame saved", zap.Int("frame", i))
	}
	return frames, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
