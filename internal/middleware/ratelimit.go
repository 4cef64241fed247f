package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-auth-gateway/internal/audit"
	"go-auth-gateway/internal/model"
	"go-auth-gateway/internal/ratelimit"
)

// routeClass is one rate-limit policy: a window, a ceiling, and a key
// derivation. Credential endpoints get a stricter class keyed by
// (address, username) so one source cannot exhaust another account's
// budget.
type routeClass struct {
	window time.Duration
	max    int
	keys   ratelimit.KeyFunc
}

type RateLimitConfig struct {
	GeneralWindow time.Duration
	GeneralMax    int
	AuthWindow    time.Duration
	AuthMax       int
}

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	auditor AuditRecorder
	general routeClass
	auth    routeClass
}

// AuditRecorder lets the middleware report rate-limit trips to the
// security-audit trail.
type AuditRecorder interface {
	Record(event audit.Event)
}

func NewRateLimitMiddleware(limiter *ratelimit.Limiter, auditor AuditRecorder, cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.GeneralWindow <= 0 {
		cfg.GeneralWindow = time.Minute
	}
	if cfg.GeneralMax <= 0 {
		cfg.GeneralMax = 100
	}
	if cfg.AuthWindow <= 0 {
		cfg.AuthWindow = 15 * time.Minute
	}
	if cfg.AuthMax <= 0 {
		cfg.AuthMax = 10
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		auditor: auditor,
		general: routeClass{window: cfg.GeneralWindow, max: cfg.GeneralMax, keys: ratelimit.ByClientIP()},
		auth:    routeClass{window: cfg.AuthWindow, max: cfg.AuthMax, keys: ratelimit.ByClientIPAndUsername()},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := m.general
		if isCredentialRoute(r) {
			class = m.auth
		}

		key, err := class.keys(r)
		if err != nil {
			// Fail open: a key derivation problem must not block the
			// request, only skip the limit for it. It is logged, never
			// silently swallowed.
			slog.Error("rate limit key derivation failed", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		result := m.limiter.Check(key, class.window, class.max)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if m.auditor != nil {
				m.auditor.Record(audit.Event{
					Action:   audit.ActionRateLimit,
					Outcome:  audit.OutcomeFailure,
					ClientIP: key,
				})
			}

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = jsonEncode(w, model.APIResponse{
				Success: false,
				Error: &model.APIError{
					Code:    "RATE_LIMITED",
					Message: "too many requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isCredentialRoute matches the endpoints that accept credentials and so
// carry the stricter per-account limit.
func isCredentialRoute(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	return path == "/auth/login" || path == "/auth/register"
}
