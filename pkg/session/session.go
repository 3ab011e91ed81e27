// Package session provides server-held visitor state for slidetrack.
// It defines the Store interface for session persistence, the per-session
// idempotency guard used by response tracking, and the progress store.
package session

import (
	"context"
	"errors"
	"maps"
	"time"
)

var (
	// ErrAlreadyResponded is returned by MarkResponded when the session has
	// already recorded a behavior for the resource.
	ErrAlreadyResponded = errors.New("session already responded to resource")

	// ErrNotFound is returned by writes that target a missing or expired session.
	ErrNotFound = errors.New("session not found")
)

// Progress is a visitor's position inside one module.
type Progress struct {
	Section int `json:"section"`
	Page    int `json:"page"`
}

// DefaultProgress is reported for modules a session has never visited.
var DefaultProgress = Progress{Section: 1, Page: 1}

// State is the per-session blob. Behaviors is write-once per resource;
// Progress and Username are last-write-wins.
type State struct {
	Behaviors map[string]string   `json:"behaviors,omitempty"`
	Progress  map[string]Progress `json:"progress,omitempty"`
	Username  *string             `json:"username,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Behaviors: maps.Clone(s.Behaviors),
		Progress:  maps.Clone(s.Progress),
	}
	if s.Username != nil {
		name := *s.Username
		out.Username = &name
	}
	return out
}

// Session represents one visitor's server-held state.
type Session struct {
	// ID is the opaque session identifier carried in the signed cookie.
	ID string `json:"id"`

	// CreatedAt is when the session was established.
	CreatedAt time.Time `json:"created_at"`

	// LastActiveAt is the most recent activity timestamp.
	LastActiveAt time.Time `json:"last_active_at"`

	// ExpiresAt is when the session expires if not touched.
	ExpiresAt time.Time `json:"expires_at"`

	State State `json:"state"`
}

// New returns a fresh session that expires ttl after now.
func New(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Guard records which resources a session has responded to.
type Guard interface {
	// HasResponded reports whether the session recorded a behavior for resource.
	// A missing session has not responded to anything.
	HasResponded(ctx context.Context, id, resource string) (bool, error)

	// MarkResponded records behavior for resource. It returns
	// ErrAlreadyResponded if a behavior is already recorded, and ErrNotFound if
	// the session does not exist.
	MarkResponded(ctx context.Context, id, resource, behavior string) error
}

// ProgressStore holds the current position per module.
type ProgressStore interface {
	// SetProgress overwrites the stored position for module.
	SetProgress(ctx context.Context, id, module string, p Progress) error

	// GetProgress returns the stored position, or DefaultProgress if unset.
	GetProgress(ctx context.Context, id, module string) (Progress, error)
}

// Store defines the interface for session persistence.
type Store interface {
	Guard
	ProgressStore

	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID. Returns nil, nil if not found or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
	Touch(ctx context.Context, id string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// SetUsername overwrites the session's display name.
	SetUsername(ctx context.Context, id, username string) error

	// Username returns the display name and whether one was set.
	Username(ctx context.Context, id string) (string, bool, error)

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error

	// Close stops background routines and releases resources.
	Close() error
}
