package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"skim/internal/logger"
)

const (
	selectorWaitTimeout = 10 * time.Second
	lazyLoadScrolls     = 3
	lazyLoadScrollDelay = 300 * time.Millisecond

	articleSelectors = `article, [role='main'], .article-content, .story-body, .post-content, main`
)

// stealthScript hides the usual headless-browser tells before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', {
	get: () => [
		{ name: 'Chrome PDF Plugin' },
		{ name: 'Chrome PDF Viewer' },
		{ name: 'Native Client' },
	],
});
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) =>
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters);
window.chrome = { runtime: {} };
`

// URL patterns blocked during rendering. Trackers and fonts add latency
// without contributing content.
var blockedURLPatterns = []string{
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*doubleclick.net*",
	"*adsystem*",
	"*facebook.net*",
	"*hotjar.com*",
	"*segment.io*",
	"*mixpanel.com*",
	"*.woff",
	"*.woff2",
	"*.ttf",
	"*.otf",
}

// Renderer drives a shared headless browser for pages that only produce
// content after executing JavaScript.
type Renderer struct {
	timeout time.Duration

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewRenderer creates a renderer. The browser launches lazily on first use
// and is reused across requests.
func NewRenderer(timeout time.Duration) *Renderer {
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Renderer{timeout: timeout}
}

// browser returns the shared allocator context, launching it on first call.
func (r *Renderer) browser() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(browserUserAgent),
			chromedp.WindowSize(1920, 1080),
			chromedp.Flag("lang", "en-US"),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Info("launched headless browser for JS rendering")
	}
	return r.allocCtx
}

// Close shuts the shared browser down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocCancel != nil {
		r.allocCancel()
		r.allocCtx = nil
		r.allocCancel = nil
	}
}

// Render navigates to the URL in a fresh browsing context, waits for an
// article container, nudges lazy loading, and returns the final HTML and URL.
func (r *Renderer) Render(ctx context.Context, pageURL string) (html, finalURL string, err error) {
	tabCtx, cancelTab := chromedp.NewContext(r.browser())
	defer cancelTab()

	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the tab.
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-timeoutCtx.Done():
		}
	}()

	err = chromedp.Run(timeoutCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		emulation.SetTimezoneOverride("America/New_York"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(pageURL),
		waitForArticleContainer(),
		scrollForLazyLoad(),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", "", fmt.Errorf("JS render failed: %w", err)
	}
	return html, finalURL, nil
}

// waitForArticleContainer waits up to selectorWaitTimeout for a known
// article container. A miss is not fatal; the page may still hold content.
func waitForArticleContainer() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, selectorWaitTimeout)
		defer cancel()
		err := chromedp.WaitReady(articleSelectors, chromedp.ByQuery).Do(waitCtx)
		if err != nil && ctx.Err() == nil {
			logger.Debug("no article container appeared before timeout")
			return nil
		}
		return err
	})
}

// scrollForLazyLoad performs a few viewport scrolls so lazy-loaded content
// renders before the HTML snapshot.
func scrollForLazyLoad() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < lazyLoadScrolls; i++ {
			if err := chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(lazyLoadScrollDelay).Do(ctx); err != nil {
				return err
			}
		}
		return chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx)
	})
}
