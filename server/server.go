// Package server exposes validation, diagnostics and solving over HTTP.
//
//	POST /v1/validate   Draft JSON → {"valid": bool, ...}
//	POST /v1/diagnose   Draft JSON → pre-solve report, summary, analysis
//	POST /v1/solve      Draft JSON → run outcome
//	GET  /healthz       liveness
//	GET  /metrics       Prometheus exposition
//
// Invalid networks and runs where both modes failed answer 422 with a "kind"
// of "validation" or "solve_failed"; malformed JSON answers 400.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katalvlaran/hydronet/config"
	"github.com/katalvlaran/hydronet/solve"
)

// Deps are the collaborators a Server needs. Runner is optional; without it
// solves run on the request goroutine.
type Deps struct {
	Orchestrator *solve.Orchestrator
	Runner       *solve.Runner
	Metrics      *solve.Metrics
	Logger       *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    config.Server
	deps   Deps
	router *gin.Engine
}

// New builds the router. It sets the process-wide gin mode from cfg.Mode.
func New(cfg config.Server, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = solve.NewMetrics(nil)
	}
	gin.SetMode(cfg.Mode)

	s := &Server{cfg: cfg, deps: deps}
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), s.limitBody())

	v1 := r.Group("/v1")
	v1.POST("/validate", s.handleValidate)
	v1.POST("/diagnose", s.handleDiagnose)
	v1.POST("/solve", s.handleSolve)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))

	s.router = r

	return s
}

// Handler returns the router for use with httptest or a custom listener.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down
// gracefully within five seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout.Duration,
		WriteTimeout: s.cfg.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.deps.Logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// accessLog logs one structured line per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

// limitBody caps request bodies at cfg.MaxBodyBytes.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxBodyBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}
