package ratelimit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the rate-limit key for a request. A returned error means
// the key could not be derived; the middleware fails open on it.
type KeyFunc func(r *http.Request) (string, error)

// usernamePlaceholder stands in when a request carries no parseable
// username, so anonymous and malformed submissions still share one bucket
// per address.
const usernamePlaceholder = "-"

const maxKeyBodyBytes = 1 << 20

// ByClientIP keys on the caller's network address.
func ByClientIP() KeyFunc {
	return func(r *http.Request) (string, error) {
		return RequestIP(r), nil
	}
}

// ByClientIPAndUsername keys auth endpoints on the (address, account)
// pair so lockout pressure from one source cannot exhaust another
// account's budget. The request body is re-buffered so the handler can
// still read it.
func ByClientIPAndUsername() KeyFunc {
	return func(r *http.Request) (string, error) {
		username := usernamePlaceholder

		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBodyBytes))
			if err != nil {
				return "", fmt.Errorf("read request body for rate limit key: %w", err)
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var payload struct {
				Username string `json:"username"`
			}
			if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil {
				if u := strings.ToLower(strings.TrimSpace(payload.Username)); u != "" {
					username = u
				}
			}
		}

		return RequestIP(r) + ":" + username, nil
	}
}

// RequestIP resolves the caller's network address, preferring proxy
// headers over the socket peer.
func RequestIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
