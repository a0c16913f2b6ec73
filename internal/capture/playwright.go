package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// chromiumArgs keep Chrome usable inside containers.
var chromiumArgs = []string{"--no-sandbox", "--disable-dev-shm-usage"}

// PlaywrightDriver drives Chromium or Firefox through playwright.
type PlaywrightDriver struct {
	install bool
	once    sync.Once
	err     error
}

// NewPlaywrightDriver creates a driver. With install set, the playwright
// driver and browsers are downloaded on first launch if missing.
func NewPlaywrightDriver(install bool) *PlaywrightDriver {
	return &PlaywrightDriver{install: install}
}

func (d *PlaywrightDriver) ensureInstalled() error {
	d.once.Do(func() {
		if !d.install {
			return
		}
		d.err = playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium", "firefox"},
			Verbose:  false,
		})
	})
	return d.err
}

// Launch implements Driver.
func (d *PlaywrightDriver) Launch(ctx context.Context, browser Browser, opts LaunchOptions) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.ensureInstalled(); err != nil {
		return nil, eris.Wrap(err, "playwright: install")
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "playwright: start")
	}

	var bt playwright.BrowserType
	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)}
	switch browser {
	case Chrome:
		bt = pw.Chromium
		launch.Args = chromiumArgs
	case Firefox:
		bt = pw.Firefox
	default:
		_ = pw.Stop()
		return nil, eris.Wrapf(ErrUnknownBrowser, "playwright: %q", browser)
	}

	b, err := bt.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, eris.Wrapf(err, "playwright: launch %s", browser)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, eris.Wrap(err, "playwright: new page")
	}
	if opts.Timeout > 0 {
		page.SetDefaultNavigationTimeout(float64(opts.Timeout.Milliseconds()))
	}

	zap.L().Debug("playwright: browser launched",
		zap.String("browser", string(browser)),
		zap.String("version", b.Version()),
	)
	return &playwrightPage{pw: pw, browser: b, page: page}, nil
}

type playwrightPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (p *playwrightPage) Open(ctx context.Context, url string, waitIdle bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wait := playwright.WaitUntilStateLoad
	if waitIdle {
		wait = playwright.WaitUntilStateNetworkidle
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: wait})
	return eris.Wrapf(err, "playwright: goto %s", url)
}

func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	return eris.Wrap(err, "playwright: screenshot")
}

func (p *playwrightPage) Close() error {
	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, eris.Wrap(err, "playwright: close browser"))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, eris.Wrap(err, "playwright: stop"))
	}
	return errors.Join(errs...)
}
