// Package lifecycle owns the single long-lived backend client handle:
// creation at cold start, periodic refresh, and reconnect on demand.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kevingruber/blob-proxy/internal/backend"
	"github.com/kevingruber/blob-proxy/internal/endpoint"
)

// Handle wraps a backend store bound to one resolved endpoint. Handles are
// replaced, never mutated, so readers always observe a complete one.
type Handle struct {
	Store           backend.Store
	Endpoint        endpoint.Candidate
	CreatedAt       time.Time
	LastValidatedAt time.Time
}

// Resolver finds a backend endpoint. Satisfied by *endpoint.Resolver.
type Resolver interface {
	Resolve(ctx context.Context) (endpoint.Candidate, error)
}

// Opener constructs a store bound to a resolved candidate.
type Opener func(endpoint.Candidate) (backend.Store, error)

// Manager is the single owner of the active Handle.
type Manager struct {
	resolver        Resolver
	open            Opener
	refreshInterval time.Duration
	logger          zerolog.Logger

	mu     sync.RWMutex
	handle *Handle

	// group coalesces concurrent refresh triggers into one resolution.
	group singleflight.Group

	now func() time.Time
}

// NewManager creates a manager. The handle is built lazily on first use.
func NewManager(resolver Resolver, open Opener, refreshInterval time.Duration, logger zerolog.Logger) *Manager {
	if refreshInterval <= 0 {
		refreshInterval = time.Minute
	}
	return &Manager{
		resolver:        resolver,
		open:            open,
		refreshInterval: refreshInterval,
		logger:          logger,
		now:             time.Now,
	}
}

// Client returns the current handle. At cold start it blocks on the first
// resolution; once a handle exists, a stale refresh interval triggers a
// background refresh and the stale-but-usable handle is returned
// immediately.
func (m *Manager) Client(ctx context.Context) (*Handle, error) {
	h := m.current()
	if h == nil {
		return m.refresh(ctx)
	}

	if m.now().Sub(h.LastValidatedAt) > m.refreshInterval {
		refreshCtx := context.WithoutCancel(ctx)
		go func() {
			if _, err := m.refresh(refreshCtx); err != nil {
				m.logger.Warn().Err(err).Msg("background client refresh failed")
			}
		}()
	}
	return h, nil
}

// ForceRefresh re-resolves the endpoint and swaps in a new handle. Called
// by the orchestrator after a connectivity-class failure.
func (m *Manager) ForceRefresh(ctx context.Context) (*Handle, error) {
	return m.refresh(ctx)
}

func (m *Manager) current() *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

func (m *Manager) refresh(ctx context.Context) (*Handle, error) {
	v, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		cand, rerr := m.resolver.Resolve(ctx)
		if rerr != nil && !errors.Is(rerr, endpoint.ErrNoReachableEndpoint) {
			// Hard resolver failure: keep serving the existing handle if
			// there is one.
			if h := m.current(); h != nil {
				m.logger.Warn().Err(rerr).Msg("endpoint resolution failed, keeping current client")
				return h, nil
			}
			return nil, rerr
		}
		if rerr != nil {
			m.logger.Warn().
				Str("endpoint", cand.Source).
				Msg("binding client to unverified fallback endpoint")
		}

		store, oerr := m.open(cand)
		if oerr != nil {
			if h := m.current(); h != nil {
				m.logger.Warn().Err(oerr).Msg("client construction failed, keeping current client")
				return h, nil
			}
			return nil, oerr
		}

		now := m.now()
		h := &Handle{
			Store:           store,
			Endpoint:        cand,
			CreatedAt:       now,
			LastValidatedAt: now,
		}

		m.mu.Lock()
		m.handle = h
		m.mu.Unlock()

		m.logger.Info().Str("endpoint", cand.Source).Msg("backend client refreshed")
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}
