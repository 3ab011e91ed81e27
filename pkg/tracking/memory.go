package tracking

import (
	"context"
	"sync"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

// MemoryUnitOfWork implements UnitOfWork for the in-memory stores. Units are
// serialized by a single mutex; writes are staged and applied only after fn
// returns nil.
type MemoryUnitOfWork struct {
	mu       sync.Mutex
	events   tally.Appender
	sessions session.Store
}

// NewMemoryUnitOfWork creates a unit of work over events and sessions.
func NewMemoryUnitOfWork(events tally.Appender, sessions session.Store) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{events: events, sessions: sessions}
}

// Do runs fn with staged writers and applies the staged writes on success.
func (m *MemoryUnitOfWork) Do(ctx context.Context, sessionID string, fn func(ctx context.Context, u Unit) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return err //nolint:wrapcheck // store errors are already wrapped
	}
	if sess == nil {
		return session.ErrNotFound
	}

	staged := &stagedUnit{guard: m.sessions, marks: make(map[string]string)}
	if err := fn(ctx, Unit{Events: staged, Guard: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return database.Unavailable("committing unit", err)
	}

	// The unit is committed from here on; apply without the caller's deadline.
	apply := context.WithoutCancel(ctx)
	for resource, behavior := range staged.marks {
		if err := m.sessions.MarkResponded(apply, sessionID, resource, behavior); err != nil {
			return err //nolint:wrapcheck // guard errors are sentinels
		}
	}
	for _, e := range staged.events {
		if err := m.events.Append(apply, e.Resource, e.Behavior); err != nil {
			return err //nolint:wrapcheck // store errors are already wrapped
		}
	}
	return nil
}

// stagedUnit buffers writes for one unit.
type stagedUnit struct {
	guard  session.Guard
	marks  map[string]string
	events []tally.Event
}

func (u *stagedUnit) Append(ctx context.Context, resource, behavior string) error {
	if err := ctx.Err(); err != nil {
		return database.Unavailable("appending event", err)
	}
	u.events = append(u.events, tally.Event{Resource: resource, Behavior: behavior})
	return nil
}

func (u *stagedUnit) HasResponded(ctx context.Context, id, resource string) (bool, error) {
	if _, ok := u.marks[resource]; ok {
		return true, nil
	}
	return u.guard.HasResponded(ctx, id, resource) //nolint:wrapcheck // pass-through
}

func (u *stagedUnit) MarkResponded(ctx context.Context, id, resource, behavior string) error {
	responded, err := u.HasResponded(ctx, id, resource)
	if err != nil {
		return err
	}
	if responded {
		return session.ErrAlreadyResponded
	}
	u.marks[resource] = behavior
	return nil
}

// Verify interface compliance.
var (
	_ UnitOfWork     = (*MemoryUnitOfWork)(nil)
	_ tally.Appender = (*stagedUnit)(nil)
	_ session.Guard  = (*stagedUnit)(nil)
)
