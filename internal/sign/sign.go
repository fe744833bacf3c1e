// Package sign implements the request signing scheme shared by both
// marketplace APIs: a lowercase hex MD5 digest over the request body, the
// shared secret and a millisecond timestamp, carried alongside channel and
// device identification headers.
package sign

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// Millis returns the current unix time in milliseconds as the decimal string
// the signature scheme expects.
func Millis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Signature computes MD5(body + secret + millis) as lowercase hex.
func Signature(body []byte, secret string, millis string) string {
	h := md5.New()
	h.Write(body)
	h.Write([]byte(secret))
	h.Write([]byte(millis))
	return hex.EncodeToString(h.Sum(nil))
}

// Headers fills the platform-identifying header set for a signed request.
// token may be empty for unauthenticated calls (the login endpoint).
func Headers(req *http.Request, channelID, devCode, millis, signature, token string) {
	req.Header.Set("channelid", channelID)
	req.Header.Set("txntime", millis)
	req.Header.Set("devCode", devCode)
	req.Header.Set("sign", signature)
	if token != "" {
		req.Header.Set("token", token)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
}
