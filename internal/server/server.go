// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the diagnostics service over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Diagnostics is the service surface the handlers call.
type Diagnostics interface {
	Features() ([]string, error)
	PredictFeatures(features types.RawRow) (types.Diagnosis, error)
	PredictRow(idx int, row types.RawRow) (types.DiagnosticResult, error)
	PredictBatch(rows []types.RawRow) (types.BatchResult, error)
	Explain(w types.Waveform, windowSizeMs float64) (*types.AttributionResult, error)
	Status() (types.ModelsStatus, error)
	FeatureSpace() (types.FeatureSpace, error)
	Ready() map[string]bool
}

// RunStore persists diagnosed uploads.
type RunStore interface {
	Save(ctx context.Context, run *types.Run) error
}

// Option configures a Server.
type Option func(*Server)

// WithRunStore persists every upload to rs.
func WithRunStore(rs RunStore) Option {
	return func(s *Server) { s.runs = rs }
}

// Server routes HTTP requests to a Diagnostics service.
type Server struct {
	svc    Diagnostics
	runs   RunStore
	cfg    types.ServerConfig
	logger *zap.Logger
	router *gin.Engine
	now    func() time.Time
}

// New builds the router. cfg zero values take their defaults.
func New(svc Diagnostics, cfg types.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg.WithDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if s.cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(s.corsConfig()))
	router.MaxMultipartMemory = s.cfg.MaxUploadBytes

	s.router = router
	s.registerRoutes()
	return s
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		diag := v1.Group("/diagnostics")
		diag.GET("/features", s.features)
		diag.POST("/predict", s.predictFeatures)
		diag.POST("/explain", s.explain)

		adv := v1.Group("/new-models")
		adv.GET("/status", s.status)
		adv.GET("/features", s.featureSpace)
		adv.POST("/predict", s.predictRow)
		adv.POST("/batch", s.predictBatch)

		v1.POST("/uploads", s.upload)
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting diagnostics server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down diagnostics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
