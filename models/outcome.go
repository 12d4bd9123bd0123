package models

import (
	"fmt"
	"time"
)

// ErrorKind classifies why a comparison or a single user failed
type ErrorKind string

const (
	ErrorNotFound       ErrorKind = "not_found"
	ErrorEmptyWatchlist ErrorKind = "empty_watchlist"
	ErrorNetwork        ErrorKind = "network_error"
	ErrorTimeout        ErrorKind = "timeout"

	// Terminal kinds, never attached to a single user
	ErrorValidation       ErrorKind = "validation"
	ErrorInsufficientData ErrorKind = "insufficient_data"
)

// ScrapeError is the per-user failure produced by the scraper
type ScrapeError struct {
	Kind     ErrorKind
	Username string
	Message  string
}

func (e *ScrapeError) Error() string {
	if e == nil {
		return "scrape error"
	}
	return e.Message
}

// NewScrapeError builds a ScrapeError with the user-facing message for kind
func NewScrapeError(kind ErrorKind, username string, cause error) *ScrapeError {
	var msg string
	switch kind {
	case ErrorNotFound:
		msg = fmt.Sprintf("user %s was not found", username)
	case ErrorEmptyWatchlist:
		msg = fmt.Sprintf("user %s's watchlist is empty", username)
	case ErrorTimeout:
		msg = fmt.Sprintf("timed out fetching the watchlist of %s", username)
		if cause != nil {
			msg = fmt.Sprintf("%s: %v", msg, cause)
		}
	default:
		msg = fmt.Sprintf("network error for %s", username)
		if cause != nil {
			msg = fmt.Sprintf("%s: %v", msg, cause)
		}
	}
	return &ScrapeError{Kind: kind, Username: username, Message: msg}
}

// ScrapeOutcome is the result of scraping one user: a watchlist or an error, never both
type ScrapeOutcome struct {
	Username  string
	Watchlist Watchlist
	Err       *ScrapeError
	Pages     int // pages fetched, including the terminating one
}

// OK reports whether the outcome carries a watchlist
func (o ScrapeOutcome) OK() bool {
	return o.Err == nil
}

// Success wraps a scraped watchlist into an outcome
func Success(username string, films []Film, pages int) ScrapeOutcome {
	return ScrapeOutcome{Username: username, Watchlist: NewWatchlist(username, films), Pages: pages}
}

// Failure wraps a scrape error into an outcome
func Failure(err *ScrapeError, pages int) ScrapeOutcome {
	return ScrapeOutcome{Username: err.Username, Err: err, Pages: pages}
}

// ComparisonStatus is the final state of a comparison
type ComparisonStatus string

const (
	ComparisonDone   ComparisonStatus = "done"
	ComparisonFailed ComparisonStatus = "failed"
)

// UserResult records how one user resolved during a comparison
type UserResult struct {
	Username  string
	Cached    bool
	FilmCount int
	ErrorKind ErrorKind // Empty on success
	Message   string
}

// ComparisonRecord summarises a finished comparison for history storage
type ComparisonRecord struct {
	ID          string
	Usernames   []string
	Status      ComparisonStatus
	ErrorKind   ErrorKind
	Message     string
	ResultCount int
	Users       []UserResult
	StartedAt   time.Time
	FinishedAt  time.Time
}
