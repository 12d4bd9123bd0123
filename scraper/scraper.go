package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"watchlist-compare/config"
	"watchlist-compare/fetcher"
	"watchlist-compare/logger"
	"watchlist-compare/models"
	"watchlist-compare/parser"
)

// UserScraper fetches the complete watchlist of one user
type UserScraper interface {
	Scrape(ctx context.Context, username string) models.ScrapeOutcome
}

// PageFunc is called after every fetched page with the number of films it held
type PageFunc func(username string, page, films int)

// Scraper walks the numbered watchlist pages of a user until an empty page,
// a terminal error or the page bound.
type Scraper struct {
	fetcher   fetcher.Fetcher
	extractor parser.FilmExtractor
	baseURL   string
	maxPages  int
	pageDelay time.Duration
	log       logger.Logger

	// OnPage is optional
	OnPage PageFunc
}

// New creates a Scraper from the scrape settings
func New(f fetcher.Fetcher, ex parser.FilmExtractor, cfg config.ScrapeConfig, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.NewNop()
	}
	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = config.DefaultMaxPages
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &Scraper{
		fetcher:   f,
		extractor: ex,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxPages:  maxPages,
		pageDelay: cfg.PageDelay,
		log:       log,
	}
}

// PageURL returns the address of one numbered watchlist page
func PageURL(baseURL, username string, page int) string {
	return fmt.Sprintf("%s/%s/watchlist/page/%d/", strings.TrimRight(baseURL, "/"), url.PathEscape(username), page)
}

// Scrape implements UserScraper. Partial results are never returned: any
// fetch failure discards the films collected so far.
func (s *Scraper) Scrape(ctx context.Context, username string) models.ScrapeOutcome {
	log := s.log.With(logger.String("username", username))

	// One token per delay; the first page is fetched immediately
	limit := rate.Inf
	if s.pageDelay > 0 {
		limit = rate.Every(s.pageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var films []models.Film
	pages := 0

	for page := 1; page <= s.maxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return models.Failure(classify(username, err), pages)
		}

		pageURL := PageURL(s.baseURL, username, page)
		doc, err := s.fetcher.Fetch(ctx, pageURL)
		pages++
		if err != nil {
			scrapeErr := classify(username, err)
			log.Warn("Failed to fetch watchlist page",
				logger.Int("page", page),
				logger.String("kind", string(scrapeErr.Kind)),
				logger.Error(err),
			)
			return models.Failure(scrapeErr, pages)
		}

		pageFilms, err := s.extractor.Extract(doc.HTML)
		if err != nil {
			log.Warn("Failed to extract films", logger.Int("page", page), logger.Error(err))
			return models.Failure(models.NewScrapeError(models.ErrorNetwork, username, err), pages)
		}

		if s.OnPage != nil {
			s.OnPage(username, page, len(pageFilms))
		}

		if len(pageFilms) == 0 {
			log.Debug("Reached end of watchlist", logger.Int("page", page))
			break
		}

		films = append(films, pageFilms...)
		log.Debug("Scraped watchlist page",
			logger.Int("page", page),
			logger.Int("films", len(pageFilms)),
			logger.Int("total", len(films)),
		)

		if page == s.maxPages {
			log.Warn("Stopped at the page limit", logger.Int("max_pages", s.maxPages))
		}
	}

	if len(films) == 0 {
		return models.Failure(models.NewScrapeError(models.ErrorEmptyWatchlist, username, nil), pages)
	}

	log.Info("Watchlist scraped", logger.Int("films", len(films)), logger.Int("pages", pages))
	return models.Success(username, films, pages)
}

// classify maps a fetch error onto the per-user error taxonomy
func classify(username string, err error) *models.ScrapeError {
	switch {
	case errors.Is(err, fetcher.ErrNotFound):
		return models.NewScrapeError(models.ErrorNotFound, username, err)
	case fetcher.IsTimeout(err):
		return models.NewScrapeError(models.ErrorTimeout, username, err)
	default:
		return models.NewScrapeError(models.ErrorNetwork, username, err)
	}
}
