package adapter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The feeds are loosely typed: numbers arrive as JSON numbers, numeric
// strings, or null depending on the platform and the day. These helpers
// coerce defensively and report failure instead of panicking.

// StringField returns the first non-empty string value among the given keys.
func StringField(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// DecimalField returns the first coercible decimal among the given keys,
// with ok=false when every candidate is absent, null or malformed.
func DecimalField(raw map[string]interface{}, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		if d, ok := asDecimal(v); ok {
			return d, true
		}
		// present but malformed: report failure so the caller can log it
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// IntField returns the first coercible integer among the given keys.
func IntField(raw map[string]interface{}, keys ...string) (int, bool) {
	for _, key := range keys {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		if n, ok := asInt(v); ok {
			return n, true
		}
		return 0, false
	}
	return 0, false
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		n = strings.TrimSpace(n)
		if n == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	default:
		return decimal.Zero, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		n = strings.TrimSpace(n)
		if n == "" {
			return 0, false
		}
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case int64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
