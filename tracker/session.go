// Package tracker records CUD events on tracked models as they happen,
// via GORM callback hooks, into a per-session queue that is drained into
// the operation log on commit and discarded on rollback.
package tracker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"sync.evalgo.org/oplog"
)

// pendingOp is a not-yet-persisted tracked event: everything needed to
// append an oplog.Operation except its Order, which the store assigns.
type pendingOp struct {
	ContentTypeID uint32
	RowID         int64
	Command       oplog.Command
}

// Session is a tracker queue scoped to one logical unit of work (an
// application transaction). Concurrent sessions do not interfere with
// each other, per the concurrency model: the tracker queue is
// per-session, not process-wide.
type Session struct {
	ID uuid.UUID

	// Internal sessions are never recorded — used for the engine's own
	// writes during merge/push/repair apply, which already carry their
	// own operation accounting and must not re-track themselves.
	Internal bool

	mu    sync.Mutex
	queue []pendingOp
}

// NewSession returns a fresh, empty tracker session.
func NewSession(internal bool) *Session {
	return &Session{ID: uuid.New(), Internal: internal}
}

func (s *Session) enqueue(op pendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, op)
}

// Pending returns the number of queued, undrained operations.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Drain appends every queued operation to store, in queue order, and
// empties the queue. Called after a successful commit.
func (s *Session) Drain(store *oplog.Store) error {
	s.mu.Lock()
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, p := range queued {
		op := &oplog.Operation{
			ContentTypeID: p.ContentTypeID,
			RowID:         p.RowID,
			Command:       p.Command,
		}
		if err := store.Append(op); err != nil {
			return err
		}
	}
	return nil
}

// Discard empties the queue without persisting anything. Called after a
// rolled-back transaction.
func (s *Session) Discard() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

type sessionKey struct{}

// WithSession attaches session to ctx, for GORM calls made with
// db.WithContext(ctx) to pick up via SessionFromContext.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext retrieves the tracker session attached by
// WithSession, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
