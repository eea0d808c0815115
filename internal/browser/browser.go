package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	BlockResources bool
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-IN,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		BlockResources: true,
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	context, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if opts.BlockResources {
		if err := blockHeavyResources(context); err != nil {
			context.Close()
			b.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to install resource blocking: %w", err)
		}
	}

	return &Browser{
		pw:      pw,
		browser: b,
		context: context,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// blockHeavyResources aborts image/media/font requests. The engine only
// needs markup and the scripts that hydrate it.
func blockHeavyResources(context playwright.BrowserContext) error {
	blocked := map[string]bool{
		"image": true,
		"media": true,
		"font":  true,
	}
	return context.Route("**/*", func(route playwright.Route) {
		if blocked[route.Request().ResourceType()] {
			route.Abort()
			return
		}
		route.Continue()
	})
}

// NewPage opens a tab wrapped in the Page capability interface.
func (b *Browser) NewPage(navTimeout time.Duration, maxNavRetries int) (Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(DefaultOptions().Timeout.Milliseconds()))

	return &playwrightPage{
		page:       page,
		navTimeout: navTimeout,
		maxRetries: maxNavRetries,
		logger:     b.logger.With("component", "page"),
	}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

type playwrightPage struct {
	page       playwright.Page
	navTimeout time.Duration
	maxRetries int
	logger     *slog.Logger
}

func (p *playwrightPage) Navigate(url string) error {
	var lastErr error

	for i := 0; i < p.maxRetries; i++ {
		if i > 0 {
			p.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", p.maxRetries, lastErr)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Content() (string, error) {
	content, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return content, nil
}

func (p *playwrightPage) IsVisible(selector string) bool {
	visible, err := p.page.Locator(selector).First().IsVisible()
	if err != nil {
		return false
	}
	return visible
}

func (p *playwrightPage) WaitVisible(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) Click(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) Fill(selector, text string, timeout time.Duration) error {
	return p.page.Locator(selector).First().Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *playwrightPage) Text(selector string) (string, error) {
	return p.page.Locator(selector).First().InnerText()
}

func (p *playwrightPage) Settle(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
