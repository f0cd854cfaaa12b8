package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/models"
)

// Browser owns a single Chrome instance and implements interfaces.SessionPage.
// One crawl run is serialized around one page, so there is no pool — the
// browser context is the run's exclusively-owned resource.
type Browser struct {
	config common.CrawlerConfig
	logger arbor.ILogger

	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc

	mu          sync.Mutex
	initialized bool
}

// New creates an unstarted browser wrapper
func New(config common.CrawlerConfig, logger arbor.ILogger) *Browser {
	return &Browser{
		config: config,
		logger: logger,
	}
}

// Start launches Chrome and verifies it responds
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return fmt.Errorf("browser already started")
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("no-sandbox", b.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(b.config.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	b.allocatorCancel = allocatorCancel

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			b.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	b.initialized = true
	b.logger.Info().
		Bool("headless", b.config.Headless).
		Msg("Browser started")

	return nil
}

// Shutdown tears down the Chrome instance
func (b *Browser) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocatorCancel != nil {
		b.allocatorCancel()
	}
	b.initialized = false
	b.logger.Info().Msg("Browser shut down")
}

// run executes chromedp actions against the browser context, bounded by the
// caller's context and the given timeout
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return fmt.Errorf("browser not started")
	}
	browserCtx := b.browserCtx
	b.mu.Unlock()

	if timeout <= 0 {
		timeout = b.config.NavigationTimeout
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	defer close(done)

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the given URL and waits for the load event
func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, b.config.NavigationTimeout, chromedp.Navigate(url))
}

// Click dispatches a click on the first node matching the selector
func (b *Browser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, b.config.NavigationTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

// SendKeys types text into the first node matching the selector
func (b *Browser) SendKeys(ctx context.Context, selector, value string) error {
	return b.run(ctx, b.config.NavigationTimeout, chromedp.SendKeys(selector, value, chromedp.ByQuery))
}

// WaitVisible blocks until the selector is visible or the timeout elapses
func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// WaitNetworkIdle waits for the document to finish loading plus a short
// settle window for late XHR-driven rendering
func (b *Browser) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	var ready bool
	settle := 500 * time.Millisecond
	if settle > timeout/2 {
		settle = timeout / 2
	}
	return b.run(ctx, timeout,
		chromedp.Poll(`document.readyState === "complete"`, &ready,
			chromedp.WithPollingInterval(100*time.Millisecond)),
		chromedp.Sleep(settle),
	)
}

// Exists reports whether at least one node matches the selector
func (b *Browser) Exists(ctx context.Context, selector string) (bool, error) {
	count, err := b.Count(ctx, selector)
	return count > 0, err
}

// Count returns the number of nodes matching the selector
func (b *Browser) Count(ctx context.Context, selector string) (int, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := b.run(ctx, b.config.NavigationTimeout, chromedp.Evaluate(script, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

// ElementHeights returns the rendered height of every node matching the
// selector, in document order
func (b *Browser) ElementHeights(ctx context.Context, selector string) ([]float64, error) {
	var heights []float64
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(e => e.getBoundingClientRect().height)`,
		selector,
	)
	if err := b.run(ctx, b.config.NavigationTimeout, chromedp.Evaluate(script, &heights)); err != nil {
		return nil, err
	}
	return heights, nil
}

// HTML returns the outer HTML of the first node matching the selector
func (b *Browser) HTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := b.run(ctx, b.config.NavigationTimeout, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// CurrentURL returns the page's current location
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := b.run(ctx, b.config.NavigationTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// ExportCookies captures the browser's current cookies for the session
// artifact
func (b *Browser) ExportCookies(ctx context.Context) ([]models.SessionCookie, error) {
	var exported []models.SessionCookie
	err := b.run(ctx, b.config.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			exported = append(exported, models.SessionCookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}
	return exported, nil
}

// ImportCookies installs previously exported cookies into the browser
func (b *Browser) ImportCookies(ctx context.Context, cookies []models.SessionCookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		params = append(params, param)
	}

	err := b.run(ctx, b.config.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	return nil
}
