package ratelimit

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIP(t *testing.T) {
	t.Parallel()

	t.Run("prefers the first X-Forwarded-For entry", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.RemoteAddr = "10.0.0.2:4444"

		assert.Equal(t, "203.0.113.7", RequestIP(req))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.Header.Set("X-Real-IP", "198.51.100.9")

		assert.Equal(t, "198.51.100.9", RequestIP(req))
	})

	t.Run("strips the port from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "192.0.2.4:51234"

		assert.Equal(t, "192.0.2.4", RequestIP(req))
	})

	t.Run("reports unknown when nothing is available", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = ""

		assert.Equal(t, "unknown", RequestIP(req))
	})
}

func TestByClientIPAndUsername(t *testing.T) {
	t.Parallel()

	keys := ByClientIPAndUsername()

	t.Run("keys on address and lowercased username", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"username":"Alice01","password":"x"}`))
		req.RemoteAddr = "192.0.2.4:51234"

		key, err := keys(req)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.4:alice01", key)
	})

	t.Run("uses a placeholder when the username is absent", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"password":"x"}`))
		req.RemoteAddr = "192.0.2.4:51234"

		key, err := keys(req)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.4:-", key)
	})

	t.Run("uses a placeholder for a non-JSON body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("not json"))
		req.RemoteAddr = "192.0.2.4:51234"

		key, err := keys(req)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.4:-", key)
	})

	t.Run("the body remains readable by the handler", func(t *testing.T) {
		body := `{"username":"alice01","password":"secret"}`
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))

		_, err := keys(req)
		require.NoError(t, err)

		replayed, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(replayed))
	})

	t.Run("propagates body read failures", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", errReader{})

		_, err := keys(req)
		assert.Error(t, err)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
