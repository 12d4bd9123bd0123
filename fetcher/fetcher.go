package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"

	"watchlist-compare/config"
	"watchlist-compare/logger"
)

// ErrNotFound is returned when the site answers a page request with HTTP 404
var ErrNotFound = errors.New("page not found")

// Page is one raw document returned by a fetcher
type Page struct {
	URL        string
	StatusCode int
	HTML       string
}

// Fetcher defines the contract for fetching implementations
type Fetcher interface {
	// Fetch retrieves a single page. It returns ErrNotFound for HTTP 404,
	// *TimeoutError when the request exceeded its deadline and *StatusError
	// for any other non-success status.
	Fetch(ctx context.Context, url string) (*Page, error)
}

// StatusError reports a non-success HTTP status other than 404
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d for %s", e.StatusCode, e.URL)
}

// TimeoutError reports a request that did not complete in time
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is, or wraps, a timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Closer is implemented by fetchers that hold external resources
type Closer interface {
	Close() error
}

// New returns the fetcher selected by cfg.Strategy
func New(cfg config.ScrapeConfig, log logger.Logger) (Fetcher, error) {
	switch cfg.Strategy {
	case config.StrategyBrowser:
		return NewRodFetcher(cfg, log), nil
	case config.StrategyHTTP, "":
		return NewCollyFetcher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown fetch strategy %q", cfg.Strategy)
	}
}

// Close releases the fetcher's resources when it has any
func Close(f Fetcher) error {
	if c, ok := f.(Closer); ok {
		return c.Close()
	}
	return nil
}
