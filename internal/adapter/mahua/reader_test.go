package mahua

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bidflow/config"
	"bidflow/internal/apperrors"
)

const (
	testSecret    = "69eaf6b39da442809644dc2e3e233cf5"
	testDevCode   = "b2b4378b42df47518fc3511488d6d555"
	testChannelID = "OP0002"
)

func verifySignature(t *testing.T, r *http.Request, body []byte) {
	t.Helper()
	millis := r.Header.Get("txntime")
	if millis == "" {
		t.Error("txntime header missing")
	}
	sum := md5.Sum(append(append(append([]byte{}, body...), []byte(testSecret)...), []byte(millis)...))
	if got := r.Header.Get("sign"); got != hex.EncodeToString(sum[:]) {
		t.Errorf("signature mismatch: %q", got)
	}
	if got := r.Header.Get("devCode"); got != testDevCode {
		t.Errorf("devCode header mismatch: %q", got)
	}
	if got := r.Header.Get("channelid"); got != testChannelID {
		t.Errorf("channelid header mismatch: %q", got)
	}
}

func testConfig(loginURL, orderListURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Source.Mahua = config.MahuaSourceConfig{
		Enabled:      true,
		LoginURL:     loginURL,
		OrderListURL: orderListURL,
		DevCode:      testDevCode,
		SecretKey:    testSecret,
		ChannelID:    testChannelID,
		PageLimit:    200,
		LoginTimeout: 5 * time.Second,
		Timeout:      5 * time.Second,
		TokenTTL:     30 * time.Minute,
	}
	cfg.Dedup.WindowSize = 500
	cfg.Poller.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10}
	return cfg
}

func TestPollOnce(t *testing.T) {
	var loginCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&loginCalls, 1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != "{}" {
			t.Errorf("login body must be the empty object, got %q", body)
		}
		verifySignature(t, r, body)
		fmt.Fprint(w, `{"rtnCode":"000000","rtnData":{"token":"tok-abc"}}`)
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, body)
		if got := r.Header.Get("token"); got != "tok-abc" {
			t.Errorf("token header mismatch: %q", got)
		}
		var req map[string]interface{}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("order list body not JSON: %v", err)
		}
		if req["pageNum"] != float64(1) || req["pageLimit"] != float64(200) {
			t.Errorf("unexpected paging: %v", req)
		}
		fmt.Fprint(w, `{"rtnCode":"000000","rtnData":[
			{"id":"m-1","price":88.5,"buyNum":2,"movieCityName":"广州","cinemaName":"金逸影城","hallName":"杜比厅","movieName":"流浪地球"},
			{"orderId":"m-2","bidPrice":"45","seatCount":1,"cityName":"深圳"}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewReader(testConfig(server.URL+"/login", server.URL+"/orders"))

	orders, err := r.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].OrderID != "m-1" || orders[0].City != "广州" || orders[0].SeatCount != 2 {
		t.Errorf("unexpected first order: %+v", orders[0])
	}
	if orders[1].OrderID != "m-2" || orders[1].City != "深圳" {
		t.Errorf("fallback keys not applied: %+v", orders[1])
	}

	// the token is cached, a second cycle must not log in again
	if _, err := r.PollOnce(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if loginCalls != 1 {
		t.Fatalf("expected a single login across cycles, got %d", loginCalls)
	}
}

func TestPollOnceWrappedRecordList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rtnCode":"000000","rtnData":{"token":"tok"}}`)
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rtnCode":"000000","rtnData":{"list":[{"id":"m-1","price":30,"buyNum":1}]}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewReader(testConfig(server.URL+"/login", server.URL+"/orders"))
	orders, err := r.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
}

func TestPollOnceTokenRejectionClearsCredential(t *testing.T) {
	var loginCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&loginCalls, 1)
		fmt.Fprint(w, `{"rtnCode":"000000","rtnData":{"token":"tok"}}`)
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rtnCode":"999999","rtnMsg":"token invalid"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewReader(testConfig(server.URL+"/login", server.URL+"/orders"))

	_, err := r.PollOnce(context.Background())
	if !apperrors.IsType(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}

	// the credential was cleared, so the next cycle logs in again
	if _, err := r.PollOnce(context.Background()); !apperrors.IsType(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if loginCalls != 2 {
		t.Fatalf("expected re-login after rejection, got %d login calls", loginCalls)
	}
}

func TestPollOnceLoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rtnCode":"100001","rtnMsg":"bad device"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewReader(testConfig(server.URL+"/login", server.URL+"/orders"))
	_, err := r.PollOnce(context.Background())
	if !apperrors.IsType(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
