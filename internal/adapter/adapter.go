// Package adapter defines the capability every marketplace integration
// exposes to the poll orchestrator. Authentication, decryption and field
// mapping stay behind the interface; the orchestrator only sees canonical
// orders.
package adapter

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"bidflow/config"
	"bidflow/internal/model"
)

// PlatformAdapter is implemented once per marketplace. PollOnce runs one
// fetch, decode, prefilter, normalize and dedup pass and returns only the
// orders not seen before. Implementations are not safe for concurrent
// PollOnce calls; each adapter instance is owned by a single poll loop.
type PlatformAdapter interface {
	Name() string
	Platform() model.Platform
	PollOnce(ctx context.Context) ([]model.Order, error)
}

// NewHTTPClient builds the outbound client shared by the adapters, with the
// connection pool settings and request timeout from configuration.
func NewHTTPClient(pool config.ConnectionPoolConfig, timeout time.Duration) *http.Client {
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxConnsPerHost <= 0 {
		pool.MaxConnsPerHost = 10
	}
	if pool.IdleConnTimeout <= 0 {
		pool.IdleConnTimeout = 90 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// NewLimiter builds the per-adapter outbound rate limiter.
func NewLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
