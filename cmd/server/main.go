package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevingruber/blob-proxy/internal/backend"
	"github.com/kevingruber/blob-proxy/internal/cache"
	"github.com/kevingruber/blob-proxy/internal/config"
	"github.com/kevingruber/blob-proxy/internal/endpoint"
	"github.com/kevingruber/blob-proxy/internal/lifecycle"
	"github.com/kevingruber/blob-proxy/internal/proxy"
	"github.com/kevingruber/blob-proxy/internal/server"
	"github.com/kevingruber/blob-proxy/internal/telemetry"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	cleanup, err := telemetry.Setup(cfg.Sentry.Enabled, cfg.Sentry.Dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to setup telemetry")
	}
	defer cleanup()

	// Assemble the resilient storage client: resolver -> lifecycle
	// manager -> cache -> proxy.
	candidates := endpoint.Candidates(cfg.Backend.Endpoint, os.Getenv(cfg.Backend.HostEnv))
	resolver := endpoint.NewResolver(candidates, endpoint.Options{
		ProbeTimeout:  cfg.Backend.ProbeTimeout,
		SweepAttempts: cfg.Backend.ResolveAttempts,
	}, logger)

	opener := func(c endpoint.Candidate) (backend.Store, error) {
		store, err := backend.NewMinIOStore(backend.MinIOConfig{
			Endpoint:  c.URL,
			AccessKey: cfg.Backend.AccessKey,
			SecretKey: cfg.Backend.SecretKey,
			Bucket:    cfg.Backend.Bucket,
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.EnsureBucket(ctx); err != nil {
			// The endpoint may be an unverified fallback; the orchestrator
			// discovers real failures on first use.
			logger.Warn().Err(err).Msg("could not ensure bucket, continuing")
		}
		return store, nil
	}

	manager := lifecycle.NewManager(resolver, opener, cfg.Backend.RefreshInterval, logger)

	var blobCache *cache.Cache
	if cfg.Cache.Enabled {
		blobCache = cache.New(cache.Config{
			Capacity:   cfg.CacheCapacityBytes(),
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
			StaleGrace: cfg.Cache.StaleGrace,
			OnEvict: func(key string, size int64, reason cache.EvictReason) {
				logger.Debug().
					Str("key", key).
					Int64("size", size).
					Str("reason", string(reason)).
					Msg("cache entry evicted")
			},
		})
	}

	var metrics *proxy.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = proxy.NewMetrics()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize proxy metrics")
		}
	}

	p := proxy.New(manager, blobCache, proxy.Config{
		MaxRetries:       cfg.Backend.MaxRetries,
		BackoffBase:      cfg.Backend.BackoffBase,
		BackoffCap:       cfg.Backend.BackoffCap,
		OperationTimeout: cfg.Backend.OperationTimeout,
	}, logger, metrics)

	// Create and run server
	srv := server.New(cfg, p, logger)

	ctx := context.Background()
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Run server
	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}

	return logger
}
