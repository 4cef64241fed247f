package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-auth-gateway/internal/clock"
)

// Limiter is a fixed-window request counter keyed by arbitrary strings.
// It knows nothing about what a key means; callers decide whether a key is
// an IP, an ip:username pair, or anything else.
type Limiter struct {
	clock      clock.Clock
	purgeEvery time.Duration

	mu      sync.Mutex
	records map[string]*record
}

type record struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

// Result reports the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func NewLimiter(clk clock.Clock, purgeEvery time.Duration) *Limiter {
	if clk == nil {
		clk = clock.System()
	}
	if purgeEvery <= 0 {
		purgeEvery = time.Minute
	}

	return &Limiter{
		clock:      clk,
		purgeEvery: purgeEvery,
		records:    map[string]*record{},
	}
}

// Check counts one request against key and reports whether it is within
// max for the current window. The count always increments, including for
// over-limit calls, so persistent abuse keeps a key saturated. The first
// call for a key opens a window of the given length; a call at or past the
// window boundary starts a fresh window from that call.
func (l *Limiter) Check(key string, window time.Duration, max int) Result {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[key]
	if !exists || !now.Before(rec.resetAt) {
		rec = &record{resetAt: now.Add(window), window: window}
		l.records[key] = rec
	}

	rec.count++

	remaining := max - rec.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   rec.count <= max,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   rec.resetAt,
	}
}

// Run compacts expired records on a ticker until ctx is cancelled. Purge
// timing only bounds memory; correctness never depends on it because Check
// treats a stale record as fresh on its own.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.purgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := l.purge(l.clock.Now())
			if purged > 0 {
				slog.Debug("rate limit records purged", "count", purged)
			}
		}
	}
}

// purge drops records whose window closed more than one window length ago.
func (l *Limiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for key, rec := range l.records {
		if now.After(rec.resetAt.Add(rec.window)) {
			delete(l.records, key)
			purged++
		}
	}
	return purged
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
