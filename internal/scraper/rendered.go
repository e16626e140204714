package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// RenderedFetcher drives a headless Chrome instance and captures the page
// after client-side rendering. The browser is expensive to start, so one
// instance is created lazily and reused across fetches; each fetch runs in
// its own tab context.
type RenderedFetcher struct {
	cfg    *common.Config
	logger arbor.ILogger

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
}

func NewRenderedFetcher(cfg *common.Config) *RenderedFetcher {
	return &RenderedFetcher{
		cfg:    cfg,
		logger: common.GetLogger(),
	}
}

// buildAllocatorOptions creates Chrome allocator options. The stealth flags
// matter: the target site serves a challenge page to clients that announce
// automation.
func (f *RenderedFetcher) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(f.cfg.Source.UserAgent),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-gpu", true),

		chromedp.WindowSize(1920, 1080),
	}

	if f.cfg.Fetch.Headless {
		// New headless mode is less detectable than the classic one.
		opts = append(opts, chromedp.Flag("headless", "new"))
	}

	return opts
}

// ensureBrowser starts the shared browser instance on first use.
func (f *RenderedFetcher) ensureBrowser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}

	f.logger.Info().Bool("headless", f.cfg.Fetch.Headless).Msg("Starting browser")

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), f.buildAllocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			f.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	f.browserCtx = browserCtx
	f.browserCancel = browserCancel
	f.allocatorCancel = allocatorCancel
	return f.browserCtx, nil
}

// Fetch renders url in a fresh tab and returns the post-render document.
// It waits for table markup to appear but tolerates the wait timing out,
// since the validator makes the final completeness call on the HTML.
func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	browserCtx, err := f.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, f.cfg.Fetch.RenderTimeout)
	defer timeoutCancel()

	// The tab must descend from the browser context, so the caller's
	// cancellation is relayed instead of inherited.
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-tabCtx.Done():
		}
	}()

	// Capture the main document response status from network events; the
	// DOM alone cannot tell a rendered error page from a real one.
	var statusCode int
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	var html string
	err = chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, waitCancel := context.WithTimeout(ctx, f.cfg.Fetch.TableWaitTimeout)
			defer waitCancel()
			if err := chromedp.WaitReady("table", chromedp.ByQuery).Do(waitCtx); err != nil {
				// Tolerated: some pages never finish loading their tables
				// and the validator reports those as incomplete.
				f.logger.Debug().Str("url", url).Msg("Timed out waiting for table markup")
			}
			return nil
		}),
		chromedp.Sleep(f.cfg.Fetch.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("rendered fetch failed for %s: %w", url, err)
	}

	if html == "" {
		return nil, fmt.Errorf("rendered fetch for %s returned empty document", url)
	}
	if statusCode == 0 {
		statusCode = 200
	}
	if statusCode >= 400 {
		return nil, fmt.Errorf("rendered fetch for %s returned status %d", url, statusCode)
	}

	f.logger.Debug().
		Str("url", url).
		Int("status", statusCode).
		Int("size", len(html)).
		Msg("Rendered page captured")

	return &FetchResult{
		HTML:       html,
		Strategy:   StrategyRendered,
		StatusCode: statusCode,
		Size:       len(html),
	}, nil
}

// Shutdown stops the shared browser instance if one was started.
func (f *RenderedFetcher) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocatorCancel != nil {
		f.allocatorCancel()
		f.allocatorCancel = nil
	}
	f.browserCtx = nil
}
