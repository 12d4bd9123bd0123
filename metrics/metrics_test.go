package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ComparisonStarted()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.PageFetched()
	m.PageFetched()
	m.UserScraped("ok", time.Second)
	m.UserScraped("not_found", time.Millisecond)
	m.ComparisonFinished("done")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComparisonsTotal.WithLabelValues("done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ComparisonsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetchedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UserScrapesTotal.WithLabelValues("not_found")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ComparisonStarted()
		m.CacheLookup(true)
		m.PageFetched()
		m.UserScraped("ok", time.Second)
		m.ComparisonFinished("failed")
	})
}
