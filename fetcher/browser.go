package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/aluiziolira/go-scrape-bikes/config"
)

// Subresource types suppressed when block_resources is enabled; the
// catalog markup does not depend on any of them.
var blockedResourceTypes = map[string]struct{}{
	"image":      {},
	"media":      {},
	"font":       {},
	"stylesheet": {},
}

// BrowserFetcher renders pages in a headless browser. It owns exactly
// one session (one browser process, one context, one page) for the
// whole run: acquired lazily on the first Fetch, torn down once by
// Close regardless of how the run exits.
type BrowserFetcher struct {
	opts   config.FetchOptions
	logger *slog.Logger

	mu         sync.Mutex
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// NewBrowserFetcher builds the browser backend. No browser is launched
// until the first Fetch.
func NewBrowserFetcher(opts config.FetchOptions) *BrowserFetcher {
	return &BrowserFetcher{
		opts:   opts,
		logger: slog.Default().With(slog.String("component", "browser")),
	}
}

// Fetch navigates the session's page to the URL, waits for network
// quiescence plus the configured settle delay, and returns the rendered
// document.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureSession(); err != nil {
		return "", err
	}

	_, err := f.page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(f.opts.Timeout().Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	time.Sleep(f.opts.SettleDelay())

	content, err := f.page.Content()
	if err != nil {
		return "", fmt.Errorf("read rendered document: %w", err)
	}
	return content, nil
}

func (f *BrowserFetcher) ensureSession() error {
	if f.page != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:       playwright.String(f.opts.UserAgent),
		AcceptDownloads: playwright.Bool(false),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(float64(f.opts.Timeout().Milliseconds()))

	if f.opts.BlockResources {
		err = page.Route("**/*", func(route playwright.Route) {
			if _, blocked := blockedResourceTypes[route.Request().ResourceType()]; blocked {
				route.Abort()
				return
			}
			route.Continue()
		})
		if err != nil {
			browserCtx.Close()
			browser.Close()
			pw.Stop()
			return fmt.Errorf("install resource blocking: %w", err)
		}
	}

	f.logger.Debug("browser session started",
		slog.Bool("block_resources", f.opts.BlockResources),
	)

	f.pw = pw
	f.browser = browser
	f.browserCtx = browserCtx
	f.page = page
	return nil
}

// Close tears the session down exactly once. Safe to call whether or
// not a session was ever started.
func (f *BrowserFetcher) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		var errs []error
		if f.browserCtx != nil {
			if err := f.browserCtx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if f.browser != nil {
			if err := f.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if f.pw != nil {
			if err := f.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop playwright: %w", err))
			}
		}
		f.page = nil
		f.browserCtx = nil
		f.browser = nil
		f.pw = nil
		f.closeErr = errors.Join(errs...)
	})
	return f.closeErr
}
