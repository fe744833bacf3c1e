package mahua

import (
	"context"
	"sync"
	"time"

	"bidflow/internal/apperrors"
)

// loginFunc performs one authenticated login round trip and returns a token.
type loginFunc func(ctx context.Context) (string, error)

// credentials caches the short-lived API token. The token moves through
// three states: absent, valid and expired. Refresh is lazy, there is no
// background renewal; concurrent callers are serialized so at most one
// login request is in flight at a time.
type credentials struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	ttl       time.Duration
	login     loginFunc
}

func newCredentials(ttl time.Duration, login loginFunc) *credentials {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &credentials{ttl: ttl, login: login}
}

// Token returns a valid token, logging in first if the cached one is
// absent or expired.
func (c *credentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		c.token = ""
		return "", apperrors.Wrap(apperrors.ErrAuth, err)
	}
	if token == "" {
		return "", apperrors.NewAuth("login returned empty token", nil)
	}

	c.token = token
	c.expiresAt = time.Now().Add(c.ttl)
	return token, nil
}

// Invalidate drops the cached token so the next call logs in again. Used
// when the API rejects a request that carried the current token.
func (c *credentials) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
