// Package identity tracks the session identity and turns sign-in,
// sign-out, and session-restore into a single ordered event stream. The
// cart engine consumes the stream strictly in arrival order, so identity
// transitions never interleave.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	KindSessionRestored Kind = iota
	KindSignedIn
	KindSignedOut
)

func (k Kind) String() string {
	switch k {
	case KindSessionRestored:
		return "session_restored"
	case KindSignedIn:
		return "signed_in"
	case KindSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event is one identity transition. UserID is empty for signed-out and for
// an anonymous session restore.
type Event struct {
	Kind      Kind
	UserID    string
	SessionID string
	At        time.Time
}

// Handler processes one event. Errors are logged, not redelivered: every
// engine-side transition is idempotent and safe to re-run on the next event.
type Handler func(ctx context.Context, ev Event) error

var ErrInvalidUserID = errors.New("invalid user id")

type Tracker struct {
	log *slog.Logger

	mu      sync.RWMutex
	current string

	events chan Event
}

func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:    log,
		events: make(chan Event, 16),
	}
}

// Current returns the signed-in user id, if any. It reflects events that
// have been processed, not merely enqueued.
func (t *Tracker) Current() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.current != ""
}

func (t *Tracker) SignIn(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	t.enqueue(Event{Kind: KindSignedIn, UserID: userID})
	return nil
}

func (t *Tracker) SignOut() {
	t.enqueue(Event{Kind: KindSignedOut})
}

// RestoreSession enqueues the startup event. An empty userID restores an
// anonymous session.
func (t *Tracker) RestoreSession(userID string) {
	t.enqueue(Event{Kind: KindSessionRestored, UserID: userID})
}

func (t *Tracker) enqueue(ev Event) {
	ev.SessionID = uuid.NewString()
	ev.At = time.Now()
	t.events <- ev
}

// Run dispatches events to the handler one at a time, in arrival order,
// until the context ends. Current is updated after the handler returns, so
// readers never observe an identity the engine has not transitioned to yet.
func (t *Tracker) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-t.events:
			if err := h(ctx, ev); err != nil {
				t.log.Warn("identity transition degraded",
					slog.String("event", ev.Kind.String()),
					slog.String("session_id", ev.SessionID),
					slog.Any("err", err))
			}

			t.mu.Lock()
			switch ev.Kind {
			case KindSignedOut:
				t.current = ""
			default:
				t.current = ev.UserID
			}
			t.mu.Unlock()

			t.log.Info("identity event processed",
				slog.String("event", ev.Kind.String()),
				slog.String("user_id", ev.UserID))
		}
	}
}
