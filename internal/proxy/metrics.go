package proxy

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the proxy-level counters.
type Metrics struct {
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter
	Retries     metric.Int64Counter
}

// NewMetrics registers the proxy counters on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("blob-proxy")

	cacheHits, err := meter.Int64Counter(
		"blob_proxy.cache_hits",
		metric.WithDescription("Downloads served from the in-memory cache"))
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"blob_proxy.cache_misses",
		metric.WithDescription("Downloads that had to contact the backend"))
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"blob_proxy.backend_retries",
		metric.WithDescription("Backend attempts repeated after connectivity failures"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		CacheHits:   cacheHits,
		CacheMisses: cacheMisses,
		Retries:     retries,
	}, nil
}
