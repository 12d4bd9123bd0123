// Package compare runs watchlist comparisons: cached users resolve first,
// the rest are scraped by a bounded pool, and the titles shared by every
// resolved user form the result.
package compare

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"watchlist-compare/cache"
	"watchlist-compare/logger"
	"watchlist-compare/metrics"
	"watchlist-compare/models"
	"watchlist-compare/progress"
	"watchlist-compare/scraper"
)

const historyTimeout = 5 * time.Second

// HistoryRecorder stores a summary of every finished comparison
type HistoryRecorder interface {
	RecordComparison(ctx context.Context, rec models.ComparisonRecord) error
}

// Coordinator runs comparisons. One Coordinator serves all requests; the
// worker pool is created per comparison.
type Coordinator struct {
	cache      cache.Store
	scraper    scraper.UserScraper
	maxWorkers int
	log        logger.Logger
	metrics    *metrics.Metrics
	history    HistoryRecorder
	now        func() time.Time
}

// NewCoordinator creates a Coordinator. maxWorkers caps the scrapes running
// at once within one comparison.
func NewCoordinator(store cache.Store, s scraper.UserScraper, maxWorkers int, log logger.Logger) *Coordinator {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		cache:      store,
		scraper:    s,
		maxWorkers: maxWorkers,
		log:        log,
		now:        time.Now,
	}
}

// WithMetrics attaches Prometheus collectors
func (c *Coordinator) WithMetrics(m *metrics.Metrics) *Coordinator {
	c.metrics = m
	return c
}

// WithHistory attaches a store for comparison summaries
func (c *Coordinator) WithHistory(h HistoryRecorder) *Coordinator {
	c.history = h
	return c
}

// Compare resolves every user and emits progress to sink, ending with
// exactly one terminal event, which is also returned.
//
// When ctx ends before the comparison completes, no terminal event is
// emitted and ctx.Err() is returned. Scrapes already running keep going in
// the background and still fill the cache.
func (c *Coordinator) Compare(ctx context.Context, usernames []string, sink progress.Sink) (progress.Event, error) {
	rec := models.ComparisonRecord{
		ID:        uuid.NewString(),
		Usernames: usernames,
		StartedAt: c.now(),
	}
	log := c.log.With(logger.String("comparison_id", rec.ID))
	out := progress.NewGuard(sink)

	c.metrics.ComparisonStarted()

	names, invalid := Validate(usernames)
	if invalid != "" {
		log.Info("Rejected comparison request", logger.Strings("usernames", usernames), logger.String("reason", invalid))
		return c.finish(ctx, log, out, &rec, progress.Error(models.ErrorValidation, invalid)), nil
	}
	rec.Usernames = names
	log.Info("Starting comparison", logger.Strings("usernames", names))

	// Resolution order: cache hits first, then scrapes as they complete
	var resolved []models.Watchlist

	var queued []string
	for _, u := range names {
		entry, ok := c.cache.Get(ctx, u)
		c.metrics.CacheLookup(ok)
		if !ok {
			queued = append(queued, u)
			continue
		}
		wl := entry.Watchlist()
		resolved = append(resolved, wl)
		rec.Users = append(rec.Users, models.UserResult{Username: u, Cached: true, FilmCount: wl.Len()})
		out.Emit(progress.UserCached(u, wl.Len()))
		log.Debug("Using cached watchlist", logger.String("username", u), logger.Int("films", wl.Len()))
	}

	if len(queued) > 0 {
		results := c.scrapeAll(ctx, log, queued)
		for remaining := len(queued); remaining > 0; remaining-- {
			select {
			case res := <-results:
				if !res.OK() {
					rec.Users = append(rec.Users, models.UserResult{
						Username:  res.Username,
						ErrorKind: res.Err.Kind,
						Message:   res.Err.Message,
					})
					out.Emit(progress.UserError(res.Err))
					continue
				}
				resolved = append(resolved, res.Watchlist)
				rec.Users = append(rec.Users, models.UserResult{Username: res.Username, FilmCount: res.Watchlist.Len()})
				out.Emit(progress.UserDone(res.Username, res.Watchlist.Len()))
			case <-ctx.Done():
				log.Info("Comparison abandoned by caller", logger.Int("pending", remaining), logger.Error(ctx.Err()))
				c.metrics.ComparisonFinished("cancelled")
				return progress.Event{}, ctx.Err()
			}
		}
	}

	if len(resolved) < 2 {
		return c.finish(ctx, log, out, &rec, progress.Error(models.ErrorInsufficientData, msgNotEnoughResult)), nil
	}

	return c.finish(ctx, log, out, &rec, progress.Result(Intersect(resolved))), nil
}

// scrapeAll starts one scrape per queued user, at most maxWorkers at a time.
// The results channel is buffered for every user so workers never block
// on a reader that left.
func (c *Coordinator) scrapeAll(ctx context.Context, log logger.Logger, queued []string) <-chan models.ScrapeOutcome {
	results := make(chan models.ScrapeOutcome, len(queued))
	workCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(min(c.maxWorkers, len(queued)))

	go func() {
		for _, u := range queued {
			g.Go(func() error {
				results <- c.scrapeOne(workCtx, log, u)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	return results
}

func (c *Coordinator) scrapeOne(ctx context.Context, log logger.Logger, username string) models.ScrapeOutcome {
	start := time.Now()
	res := c.scraper.Scrape(ctx, username)

	label := "ok"
	if !res.OK() {
		label = string(res.Err.Kind)
	}
	c.metrics.UserScraped(label, time.Since(start))

	if res.OK() {
		if err := c.cache.Put(ctx, username, res.Watchlist.Films); err != nil {
			log.Warn("Failed to cache watchlist", logger.String("username", username), logger.Error(err))
		}
	}
	return res
}

// finish emits the terminal event and records the comparison
func (c *Coordinator) finish(ctx context.Context, log logger.Logger, out *progress.Guard, rec *models.ComparisonRecord, terminal progress.Event) progress.Event {
	out.Emit(terminal)

	rec.FinishedAt = c.now()
	switch terminal.Type {
	case progress.EventResult:
		rec.Status = models.ComparisonDone
		rec.ResultCount = len(terminal.Films)
		log.Info("Comparison finished",
			logger.Int("common_films", rec.ResultCount),
			logger.Duration("took", rec.FinishedAt.Sub(rec.StartedAt)),
		)
	default:
		rec.Status = models.ComparisonFailed
		rec.ErrorKind = terminal.Kind
		rec.Message = terminal.Message
		log.Info("Comparison failed", logger.String("kind", string(terminal.Kind)), logger.String("message", terminal.Message))
	}
	c.metrics.ComparisonFinished(string(rec.Status))

	if c.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		defer cancel()
		if err := c.history.RecordComparison(hctx, *rec); err != nil {
			log.Warn("Failed to record comparison history", logger.Error(err))
		}
	}

	return terminal
}
