package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlist-compare/config"
)

func newTestFetcher(timeout time.Duration) *CollyFetcher {
	return NewCollyFetcher(config.ScrapeConfig{FetchTimeout: timeout}, nil)
}

func TestCollyFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>films</body></html>"))
		case "/missing/":
			http.NotFound(w, r)
		case "/boom/":
			w.WriteHeader(http.StatusInternalServerError)
		case "/slow/":
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(100 * time.Millisecond)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		page, err := f.Fetch(ctx, srv.URL+"/ok/")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, page.StatusCode)
		assert.Contains(t, page.HTML, "films")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/missing/")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/boom/")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/slow/")
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
	})

	t.Run("the same URL can be fetched twice", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/ok/")
		require.NoError(t, err)
		_, err = f.Fetch(ctx, srv.URL+"/ok/")
		require.NoError(t, err)
	})
}

func TestCollyFetcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(time.Second).Fetch(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	f, err := New(config.ScrapeConfig{Strategy: config.StrategyHTTP}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CollyFetcher{}, f)
	assert.NoError(t, Close(f))

	f, err = New(config.ScrapeConfig{Strategy: config.StrategyBrowser}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RodFetcher{}, f)
	// never launched, nothing to release
	assert.NoError(t, Close(f))

	_, err = New(config.ScrapeConfig{Strategy: "pigeon"}, nil)
	assert.Error(t, err)
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("nope")))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(&TimeoutError{URL: "u", Err: errors.New("x")}))
}
