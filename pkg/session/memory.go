package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map with TTL-based expiration.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// live returns the session if present and not expired. Callers hold mu.
func (s *MemoryStore) live(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, false
	}
	return sess, true
}

// Create persists a new session.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sess
	stored.State = sess.State.Clone()
	s.sessions[sess.ID] = &stored
	return nil
}

// Get retrieves a copy of the session. Returns nil, nil if not found or expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.live(id)
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	out := *sess
	out.State = sess.State.Clone()
	return &out, nil
}

// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
func (s *MemoryStore) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return nil
	}

	now := time.Now()
	sess.LastActiveAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// HasResponded reports whether the session recorded a behavior for resource.
func (s *MemoryStore) HasResponded(_ context.Context, id, resource string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.live(id)
	if !ok {
		return false, nil
	}
	_, responded := sess.State.Behaviors[resource]
	return responded, nil
}

// MarkResponded records behavior for resource once.
func (s *MemoryStore) MarkResponded(_ context.Context, id, resource, behavior string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return ErrNotFound
	}
	if _, responded := sess.State.Behaviors[resource]; responded {
		return ErrAlreadyResponded
	}
	if sess.State.Behaviors == nil {
		sess.State.Behaviors = make(map[string]string)
	}
	sess.State.Behaviors[resource] = behavior
	return nil
}

// SetProgress overwrites the stored position for module.
func (s *MemoryStore) SetProgress(_ context.Context, id, module string, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return ErrNotFound
	}
	if sess.State.Progress == nil {
		sess.State.Progress = make(map[string]Progress)
	}
	sess.State.Progress[module] = p
	return nil
}

// GetProgress returns the stored position, or DefaultProgress if unset.
func (s *MemoryStore) GetProgress(_ context.Context, id, module string) (Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.live(id)
	if !ok {
		return DefaultProgress, nil
	}
	if p, found := sess.State.Progress[module]; found {
		return p, nil
	}
	return DefaultProgress, nil
}

// SetUsername overwrites the session's display name.
func (s *MemoryStore) SetUsername(_ context.Context, id, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return ErrNotFound
	}
	sess.State.Username = &username
	return nil
}

// Username returns the display name and whether one was set.
func (s *MemoryStore) Username(_ context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.live(id)
	if !ok || sess.State.Username == nil {
		return "", false, nil
	}
	return *sess.State.Username, true, nil
}

// Cleanup removes expired sessions.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
