// Package metrics exposes Prometheus collectors for comparisons and scrapes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watchlist"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	ComparisonsTotal   *prometheus.CounterVec
	UserScrapesTotal   *prometheus.CounterVec
	PagesFetchedTotal  prometheus.Counter
	CacheLookupsTotal  *prometheus.CounterVec
	ScrapeDuration     prometheus.Histogram
	ComparisonsRunning prometheus.Gauge
}

// New creates and registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ComparisonsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comparisons_total",
				Help:      "Finished comparisons by terminal status",
			},
			[]string{"status"},
		),
		UserScrapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_scrapes_total",
				Help:      "Per-user scrapes by outcome (ok or error kind)",
			},
			[]string{"outcome"},
		),
		PagesFetchedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Watchlist pages fetched and parsed",
			},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Watchlist cache lookups by result",
			},
			[]string{"result"},
		),
		ScrapeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Time to scrape one user's full watchlist",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2min
			},
		),
		ComparisonsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "comparisons_running",
				Help:      "Comparisons currently in progress",
			},
		),
	}
}

func (m *Metrics) ComparisonStarted() {
	if m == nil {
		return
	}
	m.ComparisonsRunning.Inc()
}

func (m *Metrics) ComparisonFinished(status string) {
	if m == nil {
		return
	}
	m.ComparisonsRunning.Dec()
	m.ComparisonsTotal.WithLabelValues(status).Inc()
}

// UserScraped records one finished scrape; outcome is "ok" or an error kind
func (m *Metrics) UserScraped(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.UserScrapesTotal.WithLabelValues(outcome).Inc()
	m.ScrapeDuration.Observe(took.Seconds())
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}
