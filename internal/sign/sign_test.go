package sign

import (
	"net/http"
	"testing"
)

func TestSignatureStable(t *testing.T) {
	// MD5("{}" + "secret" + "1700000000000")
	got := Signature([]byte("{}"), "secret", "1700000000000")
	want := "d56c0d471240cfd2dc98c37af45fea06"
	if got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
}

func TestSignatureChangesWithBody(t *testing.T) {
	a := Signature([]byte(`{"pageNum":1}`), "secret", "1700000000000")
	b := Signature([]byte(`{"pageNum":2}`), "secret", "1700000000000")
	if a == b {
		t.Fatal("different bodies must sign differently")
	}
}

func TestHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	Headers(req, "OP0001", "dev123", "1700000000000", "abc", "tok")
	if req.Header.Get("channelid") != "OP0001" {
		t.Errorf("channelid not set")
	}
	if req.Header.Get("txntime") != "1700000000000" {
		t.Errorf("txntime not set")
	}
	if req.Header.Get("devCode") != "dev123" {
		t.Errorf("devCode not set")
	}
	if req.Header.Get("sign") != "abc" {
		t.Errorf("sign not set")
	}
	if req.Header.Get("token") != "tok" {
		t.Errorf("token not set")
	}

	// unauthenticated requests carry no token header
	req2, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)
	Headers(req2, "OP0001", "dev123", "1700000000000", "abc", "")
	if req2.Header.Get("token") != "" {
		t.Errorf("token header set on unauthenticated request")
	}
}
