package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-gateway/internal/audit"
	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/ratelimit"
)

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *captureAuditor) Record(event audit.Event) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

func (a *captureAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func newRateLimitedHandler(t *testing.T, cfg RateLimitConfig) (http.Handler, *captureAuditor, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	auditor := &captureAuditor{}
	mw := NewRateLimitMiddleware(ratelimit.NewLimiter(clk, time.Minute), auditor, cfg)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mw.Handler(next), auditor, clk
}

func doRequest(handler http.Handler, method string, path string, body string, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_GeneralRoutesUseTheGeneralClass(t *testing.T) {
	t.Parallel()

	handler, _, _ := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 3,
		AuthWindow: 15 * time.Minute, AuthMax: 100,
	})

	for i := 0; i < 3; i++ {
		rec := doRequest(handler, http.MethodGet, "/health", "", "198.51.100.7:1234")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := doRequest(handler, http.MethodGet, "/health", "", "198.51.100.7:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_CredentialRoutesAreKeyedPerUsername(t *testing.T) {
	t.Parallel()

	handler, _, _ := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 100,
		AuthWindow: 15 * time.Minute, AuthMax: 2,
	})

	addr := "198.51.100.7:1234"

	// Two attempts against alice exhaust alice's budget from this address.
	for i := 0; i < 2; i++ {
		rec := doRequest(handler, http.MethodPost, "/auth/login", `{"username":"alice","password":"x"}`, addr)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(handler, http.MethodPost, "/auth/login", `{"username":"alice","password":"x"}`, addr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different username from the same address has its own budget.
	rec = doRequest(handler, http.MethodPost, "/auth/login", `{"username":"bob","password":"x"}`, addr)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same username from a different address is likewise independent.
	rec = doRequest(handler, http.MethodPost, "/auth/login", `{"username":"alice","password":"x"}`, "203.0.113.9:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_CredentialAndGeneralBudgetsAreSeparate(t *testing.T) {
	t.Parallel()

	handler, _, _ := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 1,
		AuthWindow: 15 * time.Minute, AuthMax: 5,
	})

	addr := "198.51.100.7:1234"

	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/health", "", addr).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodGet, "/health", "", addr).Code)

	// The exhausted general budget does not bleed into the auth class.
	rec := doRequest(handler, http.MethodPost, "/auth/register", `{"username":"alice","password":"x"}`, addr)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_WindowRestartsAfterReset(t *testing.T) {
	t.Parallel()

	handler, _, clk := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 1,
		AuthWindow: 15 * time.Minute, AuthMax: 10,
	})

	addr := "198.51.100.7:1234"
	require.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/health", "", addr).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodGet, "/health", "", addr).Code)

	clk.Advance(time.Minute)

	assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/health", "", addr).Code)
}

func TestRateLimit_TripsAreAudited(t *testing.T) {
	t.Parallel()

	handler, auditor, _ := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 1,
		AuthWindow: 15 * time.Minute, AuthMax: 10,
	})

	addr := "198.51.100.7:1234"
	doRequest(handler, http.MethodGet, "/health", "", addr)
	assert.Equal(t, 0, auditor.count())

	doRequest(handler, http.MethodGet, "/health", "", addr)
	require.Equal(t, 1, auditor.count())
	assert.Equal(t, audit.ActionRateLimit, auditor.events[0].Action)
}

func TestRateLimit_UnreadableBodyFailsOpen(t *testing.T) {
	t.Parallel()

	handler, _, _ := newRateLimitedHandler(t, RateLimitConfig{
		GeneralWindow: time.Minute, GeneralMax: 100,
		AuthWindow: 15 * time.Minute, AuthMax: 1,
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", errReader{})
	req.RemoteAddr = "198.51.100.7:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Key derivation failed, so the request passes through unlimited.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, assert.AnError
}
