package mahua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bidflow/internal/apperrors"
)

func TestTokenLazyAcquire(t *testing.T) {
	var calls int32
	creds := newCredentials(time.Minute, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "tok-1", nil
	})

	for i := 0; i < 3; i++ {
		token, err := creds.Token(context.Background())
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if token != "tok-1" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 login call for a valid cached token, got %d", calls)
	}
}

func TestTokenExpiry(t *testing.T) {
	var calls int32
	creds := newCredentials(10*time.Millisecond, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return fmt.Sprintf("tok-%d", n), nil
	})

	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("unexpected first token %q", token)
	}

	time.Sleep(20 * time.Millisecond)

	token, err = creds.Token(context.Background())
	if err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if token != "tok-2" {
		t.Fatalf("expired token must be refreshed, got %q", token)
	}
}

func TestTokenInvalidate(t *testing.T) {
	var calls int32
	creds := newCredentials(time.Hour, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "tok", nil
	})

	if _, err := creds.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	creds.Invalidate()
	if _, err := creds.Token(context.Background()); err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("invalidate must force a new login, got %d calls", calls)
	}
}

func TestTokenLoginFailure(t *testing.T) {
	creds := newCredentials(time.Minute, func(ctx context.Context) (string, error) {
		return "", errors.New("refused")
	})

	_, err := creds.Token(context.Background())
	if !apperrors.IsType(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestTokenConcurrentRefreshSerialized(t *testing.T) {
	var inFlight, maxInFlight int32
	creds := newCredentials(time.Minute, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "tok", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := creds.Token(context.Background()); err != nil {
				t.Errorf("token: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("login calls must not overlap, saw %d in flight", maxInFlight)
	}
}
