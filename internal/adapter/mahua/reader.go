// Package mahua integrates the marketplace that authenticates each request
// with a body-plus-timestamp MD5 signature and a short-lived login token.
package mahua

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"bidflow/config"
	"bidflow/internal/adapter"
	"bidflow/internal/apperrors"
	"bidflow/internal/dedup"
	"bidflow/internal/model"
	"bidflow/internal/sign"
	"bidflow/logger"
)

const rtnCodeOK = "000000"

// Reader polls the bidding order list. One Reader is owned by one poll loop.
type Reader struct {
	cfg     config.MahuaSourceConfig
	client  *http.Client
	limiter *rate.Limiter
	window  *dedup.Window
	creds   *credentials
	log     *logger.Log
}

func NewReader(cfg *config.Config) *Reader {
	log := logger.GetLogger()

	src := cfg.Source.Mahua
	r := &Reader{
		cfg:     src,
		client:  adapter.NewHTTPClient(src.ConnectionPool, src.Timeout),
		limiter: adapter.NewLimiter(cfg.Poller.RateLimit),
		window:  dedup.NewWindow(cfg.Dedup.WindowSize),
		log:     log,
	}
	r.creds = newCredentials(src.TokenTTL, r.login)

	log.WithComponent("mahua_reader").WithFields(logger.Fields{
		"login_url":      src.LoginURL,
		"order_list_url": src.OrderListURL,
		"page_limit":     src.PageLimit,
		"token_ttl":      src.TokenTTL,
	}).Info("mahua reader initialized")

	return r
}

func (r *Reader) Name() string {
	return "mahua"
}

func (r *Reader) Platform() model.Platform {
	return model.PlatformMahua
}

// PollOnce runs one fetch, decode, normalize and dedup pass. A token
// rejection clears the cached credential so the next cycle logs in again.
func (r *Reader) PollOnce(ctx context.Context) ([]model.Order, error) {
	log := r.log.WithComponent("mahua_reader")

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewTransport("rate limiter interrupted", err)
	}

	token, err := r.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := r.fetchOrders(ctx, token)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrAuth) {
			r.creds.Invalidate()
		}
		return nil, err
	}
	logger.LogPerformanceEntry(log, "mahua_reader", "api_request", time.Since(start), nil)

	orders := r.normalize(records)
	fresh := r.window.FilterNew(orders)

	logger.LogDataFlowEntry(log, "mahua_api", "pipeline", len(fresh), "orders")
	return fresh, nil
}

// login performs the device login handshake. The request body is the
// literal empty JSON object, signed like any other call.
func (r *Reader) login(ctx context.Context) (string, error) {
	body := []byte("{}")

	loginCtx := ctx
	if r.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		loginCtx, cancel = context.WithTimeout(ctx, r.cfg.LoginTimeout)
		defer cancel()
	}

	envelope, err := r.signedPost(loginCtx, r.cfg.LoginURL, body, "")
	if err != nil {
		return "", err
	}

	code, _ := envelope["rtnCode"].(string)
	if code != rtnCodeOK {
		msg, _ := envelope["rtnMsg"].(string)
		return "", apperrors.NewAuth(fmt.Sprintf("login rejected: rtnCode=%s rtnMsg=%s", code, msg), nil)
	}

	data, _ := envelope["rtnData"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		return "", apperrors.NewAuth("login response missing token", nil)
	}

	r.log.WithComponent("mahua_reader").Info("login token acquired")
	return token, nil
}

func (r *Reader) fetchOrders(ctx context.Context, token string) ([]map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"pageNum":   1,
		"pageLimit": r.cfg.PageLimit,
	})
	if err != nil {
		return nil, apperrors.NewDecode("failed to encode order list request", err)
	}

	envelope, err := r.signedPost(ctx, r.cfg.OrderListURL, body, token)
	if err != nil {
		return nil, err
	}

	code, _ := envelope["rtnCode"].(string)
	if code != rtnCodeOK {
		msg, _ := envelope["rtnMsg"].(string)
		return nil, apperrors.NewAuth(fmt.Sprintf("order list rejected: rtnCode=%s rtnMsg=%s", code, msg), nil)
	}

	return extractRecords(envelope["rtnData"])
}

// signedPost sends body to url with the signature header set and decodes
// the JSON envelope. token may be empty for the login call.
func (r *Reader) signedPost(ctx context.Context, url string, body []byte, token string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewTransport("failed to build request", err)
	}

	millis := sign.Millis()
	sign.Headers(req, r.cfg.ChannelID, r.cfg.DevCode, millis, sign.Signature(body, r.cfg.SecretKey, millis), token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransport("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewTransport(fmt.Sprintf("request returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransport("failed to read response body", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.NewDecode("response is not valid JSON", err)
	}
	return envelope, nil
}

// extractRecords accepts rtnData as either a bare list of records or an
// object wrapping the list under "list".
func extractRecords(data interface{}) ([]map[string]interface{}, error) {
	var items []interface{}
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		items = v
	case map[string]interface{}:
		list, ok := v["list"].([]interface{})
		if !ok {
			return nil, apperrors.NewDecode("rtnData object has no record list", nil)
		}
		items = list
	default:
		return nil, apperrors.NewDecode(fmt.Sprintf("unexpected rtnData type %T", data), nil)
	}

	records := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
