// Package api serves the engine as a JSON HTTP API for the presentation
// layer. Every data answer carries the freshness directive of its
// endpoint kind.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brogergvhs/showscrape/internal/metrics"
	"github.com/brogergvhs/showscrape/internal/ui"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

type Config struct {
	Addr            string
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg    Config
	router *gin.Engine
	log    *ui.Logger
}

// NewServer wires middleware and routes.
func NewServer(cfg Config, eng Engine, m *metrics.Metrics, log *ui.Logger) *Server {
	if log == nil {
		log = ui.NopLogger()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		RequestIDMiddleware(),
		RecoveryMiddleware(log),
		LoggerMiddleware(log),
		MetricsMiddleware(m),
	)
	SetupRoutes(router, NewHandler(eng), m)

	return &Server{cfg: cfg, router: router, log: log}
}

// SetupRoutes registers the API routes.
func SetupRoutes(router *gin.Engine, h *Handler, m *metrics.Metrics) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/sources", h.Sources)
		v1.POST("/cache/:tier/refresh", h.Refresh)

		src := v1.Group("/:source")
		{
			src.GET("/listing", h.Listing)
			src.GET("/pages", h.Pages)
			src.GET("/search", h.Search)
			src.GET("/detail/:id", h.Detail)
			src.GET("/home", h.Home)
			src.GET("/catalog", h.Catalog)
			src.GET("/suggest", h.Suggest)
		}
	}
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.ReadTimeout, defaultReadTimeout),
		WriteTimeout: orDefault(s.cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  orDefault(s.cfg.IdleTimeout, defaultIdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), orDefault(s.cfg.ShutdownTimeout, defaultShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
