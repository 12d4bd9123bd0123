package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"watchlist-compare/config"
	"watchlist-compare/logger"
)

const (
	stableWindow = 500 * time.Millisecond
	maxScrolls   = 8
)

// RodFetcher implements the Fetcher interface using rod (headless browser).
// It is the fallback for pages the plain HTTP path cannot get through.
type RodFetcher struct {
	cfg config.ScrapeConfig
	log logger.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodFetcher creates a new RodFetcher. The browser starts on the first Fetch.
func NewRodFetcher(cfg config.ScrapeConfig, log logger.Logger) *RodFetcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &RodFetcher{cfg: cfg, log: log}
}

func (rf *RodFetcher) ensureBrowser() (*rod.Browser, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser != nil {
		return rf.browser, nil
	}

	userDataDir := rf.cfg.BrowserDir
	if userDataDir == "" {
		userDataDir = "/tmp/watchlist-browser"
	}
	if err := os.MkdirAll(userDataDir, 0o755); err != nil {
		rf.log.Warn("Failed to create browser data directory", logger.String("dir", userDataDir), logger.Error(err))
		userDataDir = ""
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-breakpad").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("no-zygote")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	if bin := rf.browserBin(); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	rf.log.Info("Headless browser started", logger.String("control_url", controlURL))
	rf.launcher = l
	rf.browser = browser
	return browser, nil
}

// browserBin prefers the configured binary, then a system Chrome/Chromium.
// An empty result lets rod download its own Chromium.
func (rf *RodFetcher) browserBin() string {
	if rf.cfg.BrowserBin != "" {
		return rf.cfg.BrowserBin
	}
	for _, path := range []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser == nil {
		return nil
	}
	err := rf.browser.Close()
	if rf.launcher != nil {
		rf.launcher.Kill()
	}
	rf.browser = nil
	rf.launcher = nil
	return err
}

// Fetch implements the Fetcher interface
func (rf *RodFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	browser, err := rf.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tab, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer tab.Close()

	timeout := rf.cfg.FetchTimeout
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	// Scrolling can take several stable windows on top of the page load
	p := tab.Context(ctx).Timeout(timeout + maxScrolls*stableWindow)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return nil, rf.wrap(url, "failed to navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, rf.wrap(url, "failed to load", err)
	}

	status := navigationStatus(p)
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case status != 0 && (status < 200 || status >= 300):
		return nil, &StatusError{URL: url, StatusCode: status}
	}

	rf.scrollUntilStable(p)

	html, err := p.HTML()
	if err != nil {
		return nil, rf.wrap(url, "failed to get HTML", err)
	}

	if status == 0 {
		status = http.StatusOK
	}
	return &Page{URL: url, StatusCode: status, HTML: html}, nil
}

// scrollUntilStable scrolls to the bottom until lazy-loaded posters stop
// growing the document.
func (rf *RodFetcher) scrollUntilStable(p *rod.Page) {
	lastHeight := -1
	for i := 0; i < maxScrolls; i++ {
		if _, err := p.Eval(`() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`); err != nil {
			return
		}
		if err := p.WaitStable(stableWindow); err != nil {
			rf.log.Debug("Page did not stabilize, continuing anyway", logger.Error(err))
			return
		}
		res, err := p.Eval(`() => document.body ? document.body.scrollHeight : 0`)
		if err != nil {
			return
		}
		height := res.Value.Int()
		if height == lastHeight {
			return
		}
		lastHeight = height
	}
}

// navigationStatus reads the HTTP status of the main document, or 0 when the
// browser does not expose it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		const nav = performance.getEntriesByType('navigation')[0];
		return nav && nav.responseStatus ? nav.responseStatus : 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func (rf *RodFetcher) wrap(url, what string, err error) error {
	if IsTimeout(err) {
		return &TimeoutError{URL: url, Err: err}
	}
	return fmt.Errorf("%s %s: %w", what, url, err)
}
