package proxy

import (
	"context"
	"time"

	"github.com/kevingruber/blob-proxy/internal/backend"
)

// Config tunes the orchestrator's retry behavior.
type Config struct {
	// MaxRetries is the total attempt budget for connectivity failures.
	MaxRetries int

	// BackoffBase is the delay after the first failed attempt; it doubles
	// per attempt up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// OperationTimeout bounds one operation end to end, covering
	// resolution and the backend call across all attempts.
	OperationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 200 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 3 * time.Second
	}
	return c
}

// execute runs fn against the current client handle, reconnecting and
// retrying on connectivity-class failures. Backend-semantic errors
// propagate immediately; only connectivity errors consume the retry
// budget.
func (p *Proxy) execute(ctx context.Context, op, key string, fn func(context.Context, backend.Store) error) error {
	if p.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OperationTimeout)
		defer cancel()
	}

	delay := p.cfg.BackoffBase
	var lastErr *backend.Error

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		h, err := p.mgr.Client(ctx)
		if err == nil {
			err = fn(ctx, h.Store)
			if err == nil {
				if p.metrics != nil && attempt > 1 {
					p.metrics.Retries.Add(ctx, int64(attempt-1))
				}
				return nil
			}
		}

		berr := backend.WrapError(op, key, attempt, err)
		if berr.Class != backend.ClassConnectivity {
			return berr
		}
		lastErr = berr

		if attempt == p.cfg.MaxRetries {
			break
		}

		p.logger.Warn().
			Str("op", op).
			Str("key", key).
			Int("attempt", attempt).
			Err(err).
			Msg("connectivity failure, reconnecting")

		if _, rerr := p.mgr.ForceRefresh(ctx); rerr != nil {
			p.logger.Warn().Err(rerr).Msg("client refresh failed")
		}

		select {
		case <-ctx.Done():
			// The per-call timeout cut the backoff short; the retry
			// budget was not consumed, so the error is not exhausted.
			return backend.WrapError(op, key, attempt, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.cfg.BackoffCap {
			delay = p.cfg.BackoffCap
		}
	}

	lastErr.RetriesExhausted = true
	if p.metrics != nil {
		p.metrics.Retries.Add(ctx, int64(p.cfg.MaxRetries-1))
	}
	return lastErr
}
