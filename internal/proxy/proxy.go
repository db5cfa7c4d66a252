// Package proxy implements the resilient storage operations: an execution
// orchestrator that retries connectivity failures with reconnection, and
// the Upload/Download operations with cache population on top of it.
package proxy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kevingruber/blob-proxy/internal/backend"
	"github.com/kevingruber/blob-proxy/internal/cache"
	"github.com/kevingruber/blob-proxy/internal/lifecycle"
)

// Manager is the client lifecycle surface the orchestrator needs.
// Satisfied by *lifecycle.Manager.
type Manager interface {
	Client(ctx context.Context) (*lifecycle.Handle, error)
	ForceRefresh(ctx context.Context) (*lifecycle.Handle, error)
}

// Proxy serves uploads and downloads against the backend, consulting the
// cache first and retrying connectivity failures.
type Proxy struct {
	mgr     Manager
	cache   *cache.Cache
	cfg     Config
	logger  zerolog.Logger
	metrics *Metrics
}

// New creates a proxy. cache may be nil to disable caching; metrics may be
// nil to disable instrumentation.
func New(mgr Manager, c *cache.Cache, cfg Config, logger zerolog.Logger, metrics *Metrics) *Proxy {
	return &Proxy{
		mgr:     mgr,
		cache:   c,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// UploadResult describes a completed upload.
type UploadResult struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
	Size int64  `json:"size"`
}

// DownloadResult carries a downloaded payload.
type DownloadResult struct {
	Key         string
	Payload     []byte
	ContentType string
	FromCache   bool
}

// Upload validates and stores a blob, then primes the cache write-through.
func (p *Proxy) Upload(ctx context.Context, key string, payload []byte) (UploadResult, error) {
	if key == "" {
		return UploadResult{}, backend.NewInputError("upload", key, "missing key")
	}
	if len(payload) == 0 {
		return UploadResult{}, backend.NewInputError("upload", key, "missing payload")
	}

	var res backend.PutResult
	err := p.execute(ctx, "upload", key, func(ctx context.Context, store backend.Store) error {
		r, err := store.Put(ctx, key, payload)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return UploadResult{}, err
	}

	if p.cache != nil {
		p.cache.Set(key, payload)
	}

	p.logger.Debug().Str("key", key).Int("size", len(payload)).Msg("upload complete")
	return UploadResult{Key: key, ETag: res.ETag, Size: int64(len(payload))}, nil
}

// Download returns a blob, serving from the cache when possible and
// populating it on a backend hit. A missing object propagates as
// ClassNotFound without retries.
func (p *Proxy) Download(ctx context.Context, key string) (DownloadResult, error) {
	if key == "" {
		return DownloadResult{}, backend.NewInputError("download", key, "missing key")
	}

	if p.cache != nil {
		if payload, ok := p.cache.Get(key); ok {
			p.recordCacheHit(ctx)
			return DownloadResult{
				Key:         key,
				Payload:     payload,
				ContentType: "application/octet-stream",
				FromCache:   true,
			}, nil
		}
		p.recordCacheMiss(ctx)
	}

	var obj backend.Object
	err := p.execute(ctx, "download", key, func(ctx context.Context, store backend.Store) error {
		o, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return DownloadResult{}, err
	}

	if p.cache != nil {
		p.cache.Set(key, obj.Payload)
	}

	return DownloadResult{
		Key:         key,
		Payload:     obj.Payload,
		ContentType: obj.ContentType,
	}, nil
}

// Invalidate drops a key from the cache.
func (p *Proxy) Invalidate(key string) {
	if p.cache != nil {
		p.cache.Invalidate(key)
	}
}

// Ping reports whether the current backend handle is reachable.
func (p *Proxy) Ping(ctx context.Context) error {
	h, err := p.mgr.Client(ctx)
	if err != nil {
		return err
	}
	return h.Store.Ping(ctx)
}

// CacheStats exposes cache counters for health reporting. Zero when the
// cache is disabled.
func (p *Proxy) CacheStats() cache.Stats {
	if p.cache == nil {
		return cache.Stats{}
	}
	return p.cache.Stats()
}

func (p *Proxy) recordCacheHit(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.CacheHits.Add(ctx, 1)
	}
}

func (p *Proxy) recordCacheMiss(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.CacheMisses.Add(ctx, 1)
	}
}
