package models

import (
	"strings"
	"time"
)

// Film represents a single entry on a user's watchlist
type Film struct {
	Title  string `json:"title"`
	Link   string `json:"link"`             // Absolute URL of the film page
	Poster string `json:"poster,omitempty"` // Empty when the page carried no poster image
}

// Key returns the identity used when comparing films across users
func (f Film) Key() string {
	return strings.TrimSpace(f.Title)
}

// Watchlist is the ordered list of films scraped for one user
type Watchlist struct {
	Username string
	Films    []Film
	byTitle  map[string]Film
}

// NewWatchlist builds a Watchlist and its title index.
// A title that repeats keeps the last record seen.
func NewWatchlist(username string, films []Film) Watchlist {
	w := Watchlist{
		Username: username,
		Films:    films,
		byTitle:  make(map[string]Film, len(films)),
	}
	for _, f := range films {
		w.byTitle[f.Key()] = f
	}
	return w
}

// Lookup returns the film recorded under title
func (w Watchlist) Lookup(title string) (Film, bool) {
	f, ok := w.byTitle[title]
	return f, ok
}

// Titles returns the distinct titles of the watchlist
func (w Watchlist) Titles() map[string]struct{} {
	titles := make(map[string]struct{}, len(w.byTitle))
	for t := range w.byTitle {
		titles[t] = struct{}{}
	}
	return titles
}

// Len returns the number of films collected, duplicates included
func (w Watchlist) Len() int {
	return len(w.Films)
}

// CacheEntry is a watchlist stored by the cache together with its fetch time.
// Entries are replaced wholesale and never mutated after creation.
type CacheEntry struct {
	Username  string    `json:"username"`
	Films     []Film    `json:"films"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Watchlist converts the entry into an indexed Watchlist
func (e CacheEntry) Watchlist() Watchlist {
	return NewWatchlist(e.Username, e.Films)
}
