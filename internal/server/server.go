package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kevingruber/blob-proxy/internal/config"
	"github.com/kevingruber/blob-proxy/internal/handler"
	"github.com/kevingruber/blob-proxy/internal/middleware"
	"github.com/kevingruber/blob-proxy/internal/proxy"
)

// Server represents the HTTP server.
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	proxy   *proxy.Proxy
	logger  zerolog.Logger
	metrics *middleware.Metrics
}

// New creates a new server instance.
func New(cfg *config.Config, p *proxy.Proxy, logger zerolog.Logger) *Server {
	// Set Gin mode based on log level
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		router: gin.New(),
		proxy:  p,
		logger: logger,
	}

	if cfg.Metrics.Enabled {
		metrics, err := middleware.NewMetrics()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize metrics")
		}
		s.metrics = metrics
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))

	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}

	// Health endpoints (no auth required)
	s.router.GET("/ping", s.handlePing)
	s.router.GET("/health", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	objectHandler := handler.NewObjectHandler(s.proxy, s.cfg.MaxEntrySizeBytes(), s.logger)

	objects := s.router.Group("/objects")
	if s.cfg.Auth.Enabled {
		objects.Use(middleware.BasicAuth(s.cfg.Auth.Users))
	}

	// GET is accessible to all authenticated users (reader + writer)
	objects.GET("/:key", objectHandler.Download)

	// PUT requires the "writer" role
	writeGroup := objects.Group("")
	if s.cfg.Auth.Enabled {
		writeGroup.Use(middleware.RequireRole("writer"))
	}
	writeGroup.PUT("/:key", objectHandler.Upload)
}

// handlePing is a simple health check endpoint.
func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// handleHealth performs a detailed health check including backend
// connectivity and cache occupancy.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.proxy.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("health check failed: backend unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"backend": "unreachable",
		})
		return
	}

	stats := s.proxy.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"backend": "connected",
		"cache": gin.H{
			"entries": stats.Entries,
			"bytes":   stats.Size,
			"hits":    stats.Hits,
			"misses":  stats.Misses,
		},
	})
}

// Run starts the HTTP server.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		if s.cfg.Server.TLS.Enabled {
			s.logger.Info().
				Str("addr", addr).
				Str("mode", "https").
				Msg("starting server with TLS")
			if err := srv.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		} else {
			s.logger.Info().
				Str("addr", addr).
				Str("mode", "http").
				Msg("starting server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Router returns the Gin router for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}
