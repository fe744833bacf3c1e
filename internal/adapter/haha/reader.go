// Package haha integrates the marketplace that serves its order feed behind
// a static token and, on most deployments, an AES-encrypted payload.
package haha

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bidflow/config"
	"bidflow/internal/adapter"
	"bidflow/internal/apperrors"
	"bidflow/internal/dedup"
	"bidflow/internal/model"
	"bidflow/logger"
)

// Reader polls the order-list endpoint and turns the response into
// canonical orders. One Reader is owned by one poll loop.
type Reader struct {
	cfg     config.HahaSourceConfig
	client  *http.Client
	limiter *rate.Limiter
	window  *dedup.Window
	log     *logger.Log
}

func NewReader(cfg *config.Config) *Reader {
	log := logger.GetLogger()

	src := cfg.Source.Haha
	client := adapter.NewHTTPClient(src.ConnectionPool, src.Timeout)
	client.Transport = headerTransport{
		token:  src.Token,
		cookie: src.Cookie,
		base:   client.Transport,
	}

	log.WithComponent("haha_reader").WithFields(logger.Fields{
		"url":     src.URL,
		"limit":   src.Limit,
		"timeout": src.Timeout,
	}).Info("haha reader initialized")

	return &Reader{
		cfg:     src,
		client:  client,
		limiter: adapter.NewLimiter(cfg.Poller.RateLimit),
		window:  dedup.NewWindow(cfg.Dedup.WindowSize),
		log:     log,
	}
}

func (r *Reader) Name() string {
	return "haha"
}

func (r *Reader) Platform() model.Platform {
	return model.PlatformHaha
}

// PollOnce runs one fetch, decode, prefilter, normalize and dedup pass.
func (r *Reader) PollOnce(ctx context.Context) ([]model.Order, error) {
	log := r.log.WithComponent("haha_reader")

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewTransport("rate limiter interrupted", err)
	}

	start := time.Now()
	body, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "haha_reader", "api_request", time.Since(start), nil)

	records, err := decodeEnvelope(body, r.cfg.Token, r.cfg.KeySalt, r.cfg.IVSalt)
	if err != nil {
		return nil, err
	}

	records = prefilter(records)
	orders := r.normalize(records)
	fresh := r.window.FilterNew(orders)

	logger.LogDataFlowEntry(log, "haha_api", "pipeline", len(fresh), "orders")
	return fresh, nil
}

func (r *Reader) fetch(ctx context.Context) ([]byte, error) {
	payload := "limit=" + strconv.Itoa(r.cfg.Limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, strings.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewTransport("failed to build request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransport("order list request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewTransport(fmt.Sprintf("order list returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransport("failed to read response body", err)
	}
	return body, nil
}
