package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gocolly/colly/v2"

	"watchlist-compare/config"
	"watchlist-compare/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	collector *colly.Collector
	log       logger.Logger
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(cfg config.ScrapeConfig, log logger.Logger) *CollyFetcher {
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		// The same page is fetched again once a cached watchlist expires
		colly.AllowURLRevisit(),
	)

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	c.SetRequestTimeout(timeout)

	if log == nil {
		log = logger.NewNop()
	}

	return &CollyFetcher{
		collector: c,
		log:       log,
	}
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Callbacks are per request; a clone shares the transport but not the handlers
	c := cf.collector.Clone()
	c.Context = ctx

	var (
		page      *Page
		status    int
		callbackE error
	)

	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		callbackE = err
		cf.log.Debug("Error fetching page",
			logger.String("url", url),
			logger.Int("status", r.StatusCode),
			logger.Error(err),
		)
	})

	visitErr := c.Visit(url)
	if visitErr == nil {
		visitErr = callbackE
	}

	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case visitErr != nil && IsTimeout(visitErr):
		return nil, &TimeoutError{URL: url, Err: visitErr}
	case status != 0 && (status < 200 || status >= 300):
		return nil, &StatusError{URL: url, StatusCode: status}
	case visitErr != nil:
		return nil, fmt.Errorf("failed to visit %s: %w", url, visitErr)
	case page == nil:
		return nil, fmt.Errorf("failed to visit %s: empty response", url)
	}

	return page, nil
}
