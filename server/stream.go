package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"watchlist-compare/logger"
	"watchlist-compare/progress"
)

const (
	headerContentType     = "Content-Type"
	headerCacheControl    = "Cache-Control"
	headerConnection      = "Connection"
	headerXAccelBuffering = "X-Accel-Buffering"

	sseContentType = "text/event-stream"
	eventBuffer    = 16
)

// compareStream runs a comparison for the repeated "user" parameter and
// streams one data frame per progress event. The response ends after the
// terminal frame or when the client goes away.
func (s *Server) compareStream(c *gin.Context) {
	usernames := c.QueryArray("user")
	if c.Request.Method == http.MethodPost {
		usernames = append(usernames, c.PostFormArray("user")...)
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	sink := progress.NewChanSink(ctx, eventBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if _, err := s.comparer.Compare(ctx, usernames, sink); err != nil {
			s.log.Debug("Comparison ended without a result", logger.Error(err))
		}
	}()

	for {
		select {
		case e := <-sink.Events():
			if !s.writeFrame(c.Writer, e) || e.Terminal() {
				return
			}
		case <-done:
			// Everything emitted before Compare returned is already buffered
			s.drain(c.Writer, sink.Events())
			return
		case <-ctx.Done():
			s.log.Debug("Client disconnected from comparison stream")
			return
		}
	}
}

func (s *Server) drain(w gin.ResponseWriter, events <-chan progress.Event) {
	for {
		select {
		case e := <-events:
			if !s.writeFrame(w, e) || e.Terminal() {
				return
			}
		default:
			return
		}
	}
}

// writeFrame reports false when the stream cannot continue
func (s *Server) writeFrame(w gin.ResponseWriter, e progress.Event) bool {
	frame, err := progress.SSE(e)
	if err != nil {
		s.log.Error("Failed to encode progress event", logger.String("type", string(e.Type)), logger.Error(err))
		return !e.Terminal()
	}
	if _, err := w.WriteString(frame); err != nil {
		s.log.Debug("SSE write failed (client likely disconnected)", logger.Error(err))
		return false
	}
	w.Flush()
	return true
}

func setSSEHeaders(w gin.ResponseWriter) {
	w.Header().Set(headerContentType, sseContentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
}
