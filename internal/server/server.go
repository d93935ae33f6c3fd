// Package server hosts the playground over HTTP: the embedded editor UI,
// document composition and export, server-side sandbox runs and the
// websocket receiver side of the diagnostics bridge.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/sandbox"
	"github.com/ajsharma/neon_playground/internal/transcript"
)

// maxSourceBytes bounds request bodies carrying a source set.
const maxSourceBytes = 2 << 20

// Runner executes a composed document in an isolated interpreter.
type Runner interface {
	Run(ctx context.Context, document string, post sandbox.PostFunc) (*sandbox.Result, error)
}

// statsReporter is implemented by runners that can describe their capacity,
// such as a sandbox pool.
type statsReporter interface {
	Stats() map[string]interface{}
}

// Options wires the server's collaborators. Only Config is required.
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	Runner Runner

	// Transcripts, when set, mirrors every websocket session's log to disk.
	Transcripts *transcript.FileManager
	Redactor    transcript.Redactor
}

// Server wraps the HTTP router and its dependencies.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	runner   Runner
	metrics  *Metrics
	sessions *transcript.Registry
	upgrader websocket.Upgrader

	transcripts *transcript.FileManager
	redactor    transcript.Redactor
}

// New creates a server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !opts.Config.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:      gin.New(),
		config:      opts.Config,
		logger:      logger,
		runner:      opts.Runner,
		metrics:     NewMetrics(),
		sessions:    transcript.NewRegistry(),
		transcripts: opts.Transcripts,
		redactor:    opts.Redactor,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	if sr, ok := opts.Runner.(statsReporter); ok {
		s.metrics.ObservePool(sr.Stats)
	}

	s.router.Use(gin.Recovery())
	s.router.Use(RequestLogger(logger, s.metrics))
	s.router.Use(CORS())
	if opts.Config.RateLimitEnabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", opts.Config.RateLimitRPS),
			zap.Int("burst", opts.Config.RateLimitBurst),
		)
		s.router.Use(RateLimit(RateLimitConfig{
			RequestsPerSecond: opts.Config.RateLimitRPS,
			Burst:             opts.Config.RateLimitBurst,
		}))
	}

	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	if err := s.registerAssets(); err != nil {
		return err
	}

	api := s.router.Group("/api")
	api.GET("/starter", s.handleStarter)
	api.GET("/settings", s.handleSettings)
	api.POST("/compose", s.handleCompose)
	api.POST("/export", s.handleExport)
	api.POST("/run", s.handleRun)

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	return nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.config.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
