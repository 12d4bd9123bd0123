package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchlist-compare/config"
	"watchlist-compare/logger"
	"watchlist-compare/progress"
)

const (
	readTimeout     = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Comparer runs one comparison and streams its progress to sink
type Comparer interface {
	Compare(ctx context.Context, usernames []string, sink progress.Sink) (progress.Event, error)
}

// Server is the HTTP front-end
type Server struct {
	router   *gin.Engine
	server   *http.Server
	comparer Comparer
	log      logger.Logger
}

// New creates the server and its routes. gatherer backs /metrics and may be nil.
func New(cfg config.ServerConfig, comparer Comparer, gatherer prometheus.Gatherer, log logger.Logger, debug bool) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggerMiddleware(log))

	s := &Server{
		router:   router,
		comparer: comparer,
		log:      log,
	}

	router.GET("/compare-stream", s.compareStream)
	router.POST("/compare-stream", s.compareStream)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// No write timeout: a comparison stream stays open while users are scraped
	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", logger.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for open ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func recoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			logger.String("path", c.Request.URL.Path),
			logger.Any("panic", recovered),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

func loggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("took", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}
