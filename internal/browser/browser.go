// Package browser owns the single headless Chromium process and hands
// out short-lived page contexts for fetches. Lifecycle events (launch,
// crash recovery, shutdown) are serialized; page contexts may be used
// concurrently up to a small cap.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless       bool
	ExecutablePath string
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	ViewportWidth  int
	ViewportHeight int
	MaxConcurrent  int
	UserAgents     []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		NavTimeout:     45 * time.Second,
		SettleDelay:    2 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		MaxConcurrent:  1,
		UserAgents:     defaultUserAgents(),
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Resource types that never matter for price extraction.
var blockedResourceTypes = map[string]struct{}{
	"image":      {},
	"stylesheet": {},
	"font":       {},
	"media":      {},
}

type Pool struct {
	opts   *Options
	logger *slog.Logger

	sem chan struct{}

	// lifecycle guard; held only for launch/close, never across a fetch
	lifecycle chan struct{}
	pw        *playwright.Playwright
	browser   playwright.Browser
}

func NewPool(opts *Options) *Pool {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = defaultUserAgents()
	}
	p := &Pool{
		opts:      opts,
		logger:    slog.Default().With("component", "browser"),
		sem:       make(chan struct{}, opts.MaxConcurrent),
		lifecycle: make(chan struct{}, 1),
	}
	return p
}

// Fetch navigates a fresh page context to url and returns the settled
// HTML. The browser is launched lazily on first use and relaunched
// after a crash.
func (p *Pool) Fetch(ctx context.Context, url string) (string, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	browser, err := p.ensureBrowser()
	if err != nil {
		return "", err
	}

	ua := p.opts.UserAgents[rand.Intn(len(p.opts.UserAgents))]
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(ua),
		Viewport: &playwright.Size{
			Width:  p.opts.ViewportWidth,
			Height: p.opts.ViewportHeight,
		},
	})
	if err != nil {
		p.handlePageError(err)
		return "", fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		p.handlePageError(err)
		return "", fmt.Errorf("failed to create page: %w", err)
	}

	err = page.Route("**/*", func(route playwright.Route) {
		if _, blocked := blockedResourceTypes[route.Request().ResourceType()]; blocked {
			route.Abort()
			return
		}
		route.Continue()
	})
	if err != nil {
		return "", fmt.Errorf("failed to set up request interception: %w", err)
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.opts.NavTimeout.Milliseconds())),
	})
	if err != nil {
		p.handlePageError(err)
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	// Give client frameworks a moment to hydrate prices into the DOM.
	select {
	case <-time.After(p.opts.SettleDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	html, err := page.Content()
	if err != nil {
		p.handlePageError(err)
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (p *Pool) ensureBrowser() (playwright.Browser, error) {
	p.lifecycle <- struct{}{}
	defer func() { <-p.lifecycle }()

	if p.browser != nil && p.browser.IsConnected() {
		return p.browser, nil
	}

	if p.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		p.pw = pw
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if p.opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(p.opts.ExecutablePath)
	}

	browser, err := p.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	p.browser = browser
	p.logger.Info("browser launched", "headless", p.opts.Headless)
	return browser, nil
}

// handlePageError closes the browser when the error indicates a dead
// session so the next fetch relaunches it.
func (p *Pool) handlePageError(err error) {
	if err == nil || !isDeadSession(err) {
		return
	}
	p.logger.Warn("browser session looks dead, scheduling relaunch", "error", err)

	p.lifecycle <- struct{}{}
	defer func() { <-p.lifecycle }()
	if p.browser != nil {
		p.browser.Close()
		p.browser = nil
	}
}

var deadSessionMarkers = []string{
	"target closed",
	"browser has been closed",
	"browser closed",
	"connection closed",
	"websocket",
	"has been disconnected",
}

func isDeadSession(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range deadSessionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Close shuts the browser down with a short grace period.
func (p *Pool) Close() error {
	p.lifecycle <- struct{}{}
	defer func() { <-p.lifecycle }()

	done := make(chan error, 1)
	go func() {
		var errs []error
		if p.browser != nil {
			if err := p.browser.Close(); err != nil {
				errs = append(errs, err)
			}
			p.browser = nil
		}
		if p.pw != nil {
			if err := p.pw.Stop(); err != nil {
				errs = append(errs, err)
			}
			p.pw = nil
		}
		if len(errs) > 0 {
			done <- fmt.Errorf("errors during close: %v", errs)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("browser close timed out")
	}
}
