package haha

import "net/http"

// headerTransport injects the static browser-style header set the platform
// expects on every request, including the long-lived token and cookie.
type headerTransport struct {
	token  string
	cookie string
	base   http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("token", t.token)
	if t.cookie != "" {
		req.Header.Set("Cookie", t.cookie)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
