// Package endpoint discovers a reachable backend endpoint among a
// prioritized list of candidates.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNoCandidates means the candidate list is empty. This is the only
	// fatal resolution error.
	ErrNoCandidates = errors.New("no endpoint candidates configured")

	// ErrNoReachableEndpoint accompanies the first-candidate fallback when
	// every probe sweep failed. The returned candidate is unverified;
	// callers must let the retry path discover whether it works.
	ErrNoReachableEndpoint = errors.New("no endpoint candidate reachable")
)

// Candidate is one possible backend address, tried in priority order.
type Candidate struct {
	URL    string
	Source string
}

// Well-known fallback addresses, lowest priority, tried in order: local
// process, container-network alias, host gateway alias.
var fallbacks = []Candidate{
	{URL: "http://127.0.0.1:9000", Source: "loopback"},
	{URL: "http://minio:9000", Source: "container alias"},
	{URL: "http://host.docker.internal:9000", Source: "host gateway"},
}

// Candidates assembles the prioritized candidate list: explicit override
// first, then an environment-derived host, then the well-known fallbacks.
// Duplicates keep their first (highest-priority) position.
func Candidates(override, envHost string) []Candidate {
	var out []Candidate
	if override != "" {
		out = append(out, Candidate{URL: normalize(override), Source: "config override"})
	}
	if envHost != "" {
		out = append(out, Candidate{URL: normalize(envHost), Source: "environment"})
	}
	out = append(out, fallbacks...)

	seen := make(map[string]bool, len(out))
	dedup := out[:0]
	for _, c := range out {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		dedup = append(dedup, c)
	}
	return dedup
}

// normalize fills in the scheme and default object-storage port so bare
// hostnames from the environment are usable as URLs.
func normalize(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), "9000")
	}
	return u.String()
}

// Options tunes probe and sweep behavior. Zero values fall back to
// defaults.
type Options struct {
	// HealthPath is appended to the candidate URL for the probe request.
	HealthPath string

	// ProbeTimeout bounds a single candidate probe end to end.
	ProbeTimeout time.Duration

	// SweepAttempts is how many times the full candidate list is swept
	// before falling back to the first candidate.
	SweepAttempts int

	// BackoffBase is the delay after the first failed sweep; it doubles
	// per sweep up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Client issues probe requests. Defaults to a plain http.Client; the
	// per-probe timeout is applied via context.
	Client *http.Client
}

// Resolver probes candidates and returns the first reachable one.
// Resolution is idempotent and has no side effects beyond the probes, so
// it is safe to call repeatedly.
type Resolver struct {
	candidates []Candidate
	opts       Options
	logger     zerolog.Logger
}

// NewResolver creates a resolver over a fixed candidate list.
func NewResolver(candidates []Candidate, opts Options, logger zerolog.Logger) *Resolver {
	if opts.HealthPath == "" {
		opts.HealthPath = "/minio/health/live"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Second
	}
	if opts.SweepAttempts <= 0 {
		opts.SweepAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 5 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &Resolver{candidates: candidates, opts: opts, logger: logger}
}

// Probe checks a single candidate: resolve its hostname, then issue a GET
// against the health path. Any non-2xx status or transport error means
// unreachable.
func (r *Resolver) Probe(ctx context.Context, c Candidate) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	defer cancel()

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid candidate url: %w", err)
	}
	if _, err := net.DefaultResolver.LookupHost(ctx, u.Hostname()); err != nil {
		return fmt.Errorf("name resolution failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+r.opts.HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := r.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Resolve sweeps the candidate list in priority order, retrying the whole
// sweep with doubling backoff. When every sweep fails it returns the first
// candidate together with ErrNoReachableEndpoint as a last-resort fallback.
func (r *Resolver) Resolve(ctx context.Context) (Candidate, error) {
	if len(r.candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	delay := r.opts.BackoffBase
	for attempt := 1; attempt <= r.opts.SweepAttempts; attempt++ {
		for _, c := range r.candidates {
			if err := r.Probe(ctx, c); err != nil {
				r.logger.Debug().
					Str("endpoint", c.Source).
					Int("sweep", attempt).
					Err(err).
					Msg("endpoint probe failed")
				continue
			}
			r.logger.Info().
				Str("endpoint", c.Source).
				Int("sweep", attempt).
				Msg("resolved backend endpoint")
			return c, nil
		}

		if attempt == r.opts.SweepAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return r.candidates[0], ErrNoReachableEndpoint
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.opts.BackoffCap {
			delay = r.opts.BackoffCap
		}
	}

	r.logger.Warn().
		Str("endpoint", r.candidates[0].Source).
		Msg("no endpoint reachable, falling back to highest-priority candidate")
	return r.candidates[0], ErrNoReachableEndpoint
}
