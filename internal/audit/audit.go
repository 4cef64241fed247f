package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go-auth-gateway/internal/clock"
)

// Security-audit events are kept apart from operational logs: every event
// is emitted as a slog record tagged audit=true and, when a store is
// configured, persisted for later review. Responses never carry audit
// detail; this is the only place where "unknown user" and "bad password"
// stay distinguishable.

const (
	ActionLogin     = "login"
	ActionRegister  = "register"
	ActionLogout    = "logout"
	ActionRateLimit = "rate_limit"
	ActionVerify    = "verify"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	ReasonUnknownUser  = "unknown_user"
	ReasonBadPassword  = "bad_password"
	ReasonLocked       = "account_locked"
	ReasonInactive     = "account_inactive"
	ReasonInvalidToken = "invalid_token"
	ReasonStoreError   = "store_error"
)

type Event struct {
	Action     string
	Outcome    string
	Username   string
	UserID     string
	ClientIP   string
	Reason     string
	Attempts   int
	OccurredAt time.Time
}

// Store persists audit events. Implemented by repository.AuditRepository.
type Store interface {
	Insert(ctx context.Context, event Event) error
}

// Recorder fans events out to the log synchronously and to the store
// through a bounded buffer drained by a single worker. When the buffer is
// full the event is dropped and counted; a login must never block on the
// audit trail.
type Recorder struct {
	store   Store
	clock   clock.Clock
	events  chan Event
	done    chan struct{}
	dropped atomic.Uint64
}

func NewRecorder(store Store, bufferSize int, clk clock.Clock) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if clk == nil {
		clk = clock.System()
	}

	r := &Recorder{
		store:  store,
		clock:  clk,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}

	go r.drain()
	return r
}

// Record logs the event and queues it for persistence. Never blocks.
func (r *Recorder) Record(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.clock.Now()
	}

	attrs := []any{
		"audit", true,
		"action", event.Action,
		"outcome", event.Outcome,
	}
	if event.Username != "" {
		attrs = append(attrs, "username", event.Username)
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	if event.ClientIP != "" {
		attrs = append(attrs, "client_ip", event.ClientIP)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.Attempts > 0 {
		attrs = append(attrs, "failed_attempts", event.Attempts)
	}

	if event.Outcome == OutcomeFailure {
		slog.Warn("audit event", attrs...)
	} else {
		slog.Info("audit event", attrs...)
	}

	if r.store == nil {
		return
	}

	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and flushes the buffer.
func (r *Recorder) Close() {
	close(r.events)
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)

	for event := range r.events {
		if r.store == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Insert(ctx, event); err != nil {
			slog.Error("persist audit event", "action", event.Action, "error", err)
		}
		cancel()
	}
}
