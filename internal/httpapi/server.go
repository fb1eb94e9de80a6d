// Package httpapi exposes the job worker over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/gin-gonic/gin"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = time.Minute
)

// JobRunner runs a job unless another one is in progress.
type JobRunner interface {
	TryProcess(ctx context.Context, jobID string, req core.JobRequest) (core.JobResult, bool)
	Busy() bool
}

// HealthCheck is one named dependency check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the handles the routes serve from. Archive and Voices may be nil.
type Dependencies struct {
	Runner  JobRunner
	Archive core.ResultArchive
	Voices  core.ObjectLister
	Checks  []HealthCheck
}

// Server is the HTTP surface of the worker.
type Server struct {
	deps   Dependencies
	engine *gin.Engine
	log    *logger.Logger
}

// New builds the gin engine and registers every route.
func New(deps Dependencies, log *logger.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	server := &Server{deps: deps, engine: engine, log: log}
	server.RegisterRoutes(engine)

	return server
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RegisterRoutes attaches the routes to g.
func (s *Server) RegisterRoutes(g *gin.Engine) {
	g.GET("/health", s.Health)

	v1 := g.Group("/v1")
	v1.POST("/jobs", s.CreateJob)
	v1.GET("/jobs/:id", s.GetJob)
	v1.GET("/voices", s.ListVoices)
}

// Run serves on address until ctx is done, then shuts down gracefully. Shutdown
// waits for running job requests, which are never cut short.
func (s *Server) Run(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		s.log.Info("HTTP server listening on %s", address)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("HTTP server shutting down, waiting for running requests")

	shutdownErr := httpServer.Shutdown(context.WithoutCancel(ctx))
	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
	}

	return nil
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		log.Info("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started))
	}
}
