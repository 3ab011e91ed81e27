// Package postgres provides PostgreSQL storage for sessions.
//
// Session state lives in a single JSONB column. Guard, progress, and username
// writes patch that column in place so concurrent writers to different keys
// of the same session do not overwrite each other.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/session"
)

// Store implements session.Store using PostgreSQL.
type Store struct {
	db     *sql.DB
	q      database.DBTX
	ttl    time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL session store.
type Config struct {
	TTL time.Duration
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB, cfg Config) *Store {
	return &Store{
		db:  db,
		q:   db,
		ttl: cfg.TTL,
	}
}

// WithTx returns a store whose statements run inside tx. The returned store
// has no cleanup routine and must not outlive the transaction.
func (s *Store) WithTx(tx database.DBTX) *Store {
	return &Store{db: s.db, q: tx, ttl: s.ttl}
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	query := `
		INSERT INTO sessions (id, created_at, last_active_at, expires_at, state)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.q.ExecContext(ctx, query,
		sess.ID, sess.CreatedAt, sess.LastActiveAt, sess.ExpiresAt, stateJSON,
	)
	return database.Unavailable("inserting session", err)
}

// Get retrieves a session by ID. Returns nil, nil if not found or expired.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, created_at, last_active_at, expires_at, state
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var sess session.Session
	var stateJSON []byte

	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.CreatedAt, &sess.LastActiveAt, &sess.ExpiresAt, &stateJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, database.Unavailable("scanning session", err)
	}

	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
			return nil, fmt.Errorf("decoding session state: %w", err)
		}
	}
	return &sess, nil
}

// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
func (s *Store) Touch(ctx context.Context, id string) error {
	query := `
		UPDATE sessions
		SET last_active_at = NOW(), expires_at = NOW() + $2::interval
		WHERE id = $1 AND expires_at > NOW()
	`
	_, err := s.q.ExecContext(ctx, query, id, fmt.Sprintf("%d seconds", int(s.ttl.Seconds())))
	return database.Unavailable("touching session", err)
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return database.Unavailable("deleting session", err)
}

// HasResponded reports whether the session recorded a behavior for resource.
func (s *Store) HasResponded(ctx context.Context, id, resource string) (bool, error) {
	query := `
		SELECT (state->'behaviors'->>$2::text) IS NOT NULL
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var responded bool
	err := s.q.QueryRowContext(ctx, query, id, resource).Scan(&responded)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, database.Unavailable("checking session response", err)
	}
	return responded, nil
}

// MarkResponded records behavior for resource once. The WHERE clause makes
// the write conditional on the key being absent, so a second mark for the
// same resource affects no rows.
func (s *Store) MarkResponded(ctx context.Context, id, resource, behavior string) error {
	query := `
		UPDATE sessions
		SET state = jsonb_set(
			state, '{behaviors}',
			COALESCE(state->'behaviors', '{}'::jsonb) || jsonb_build_object($2::text, $3::text)
		)
		WHERE id = $1 AND expires_at > NOW() AND (state->'behaviors'->>$2::text) IS NULL
	`
	res, err := s.q.ExecContext(ctx, query, id, resource, behavior)
	if err != nil {
		return database.Unavailable("marking session response", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Unavailable("reading affected rows", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return session.ErrAlreadyResponded
	}
	return session.ErrNotFound
}

// SetProgress overwrites the stored position for module.
func (s *Store) SetProgress(ctx context.Context, id, module string, p session.Progress) error {
	query := `
		UPDATE sessions
		SET state = jsonb_set(
			state, '{progress}',
			COALESCE(state->'progress', '{}'::jsonb) ||
				jsonb_build_object($2::text, jsonb_build_object('section', $3::int, 'page', $4::int))
		)
		WHERE id = $1 AND expires_at > NOW()
	`
	res, err := s.q.ExecContext(ctx, query, id, module, p.Section, p.Page)
	return s.requireRow(res, err, "updating session progress")
}

// GetProgress returns the stored position, or session.DefaultProgress if unset.
func (s *Store) GetProgress(ctx context.Context, id, module string) (session.Progress, error) {
	query := `
		SELECT state->'progress'->$2::text
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var raw []byte
	err := s.q.QueryRowContext(ctx, query, id, module).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(raw) == 0) {
		return session.DefaultProgress, nil
	}
	if err != nil {
		return session.Progress{}, database.Unavailable("reading session progress", err)
	}

	var p session.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return session.Progress{}, fmt.Errorf("decoding session progress: %w", err)
	}
	return p, nil
}

// SetUsername overwrites the session's display name.
func (s *Store) SetUsername(ctx context.Context, id, username string) error {
	query := `
		UPDATE sessions
		SET state = jsonb_set(state, '{username}', to_jsonb($2::text))
		WHERE id = $1 AND expires_at > NOW()
	`
	res, err := s.q.ExecContext(ctx, query, id, username)
	return s.requireRow(res, err, "updating session username")
}

// Username returns the display name and whether one was set.
func (s *Store) Username(ctx context.Context, id string) (string, bool, error) {
	query := `
		SELECT state->>'username'
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var name sql.NullString
	err := s.q.QueryRowContext(ctx, query, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, database.Unavailable("reading session username", err)
	}
	return name.String, name.Valid, nil
}

// Cleanup removes expired sessions.
func (s *Store) Cleanup(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	return database.Unavailable("cleaning up sessions", err)
}

// StartCleanupRoutine starts a background goroutine that periodically removes
// expired sessions. The goroutine is stopped when Close is called.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
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
				if err := s.Cleanup(ctx); err != nil {
					slog.Warn("session cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND expires_at > NOW())`, id,
	).Scan(&exists)
	if err != nil {
		return false, database.Unavailable("checking session existence", err)
	}
	return exists, nil
}

// requireRow maps a zero-row update to session.ErrNotFound.
func (*Store) requireRow(res sql.Result, err error, op string) error {
	if err != nil {
		return database.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Unavailable("reading affected rows", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
