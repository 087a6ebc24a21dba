package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pmartell/agentsched/internal/scheduler"
)

// Server exposes the coordinator over HTTP.
type Server struct {
	coord  *scheduler.Coordinator
	logger *slog.Logger
	http   *http.Server
}

// NewServer creates a server listening on addr. A nil logger falls back to
// slog.Default.
func NewServer(addr string, coord *scheduler.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord:  coord,
		logger: logger.With("component", "http"),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine with all routes registered. Exposed
// separately so tests can drive it with httptest.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.HandleHealthz)
	r.POST("/tasks", s.HandleSubmit)
	r.GET("/tasks", s.HandleList)
	r.GET("/tasks/:id", s.HandleShow)
	r.GET("/tasks/session/:session_id", s.HandleShowBySession)
	r.POST("/tasks/:id/cancel", s.HandleCancel)
	r.POST("/tasks/:id/resume", s.HandleResume)
	r.POST("/tasks/session/:session_id/resume", s.HandleResumeBySession)
	return r
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
