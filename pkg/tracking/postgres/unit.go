// Package postgres provides the PostgreSQL unit of work for response tracking.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/session"
	sessionpg "github.com/txn2/slidetrack/pkg/session/postgres"
	tallypg "github.com/txn2/slidetrack/pkg/tally/postgres"
	"github.com/txn2/slidetrack/pkg/tracking"
)

// lockSessionQuery takes the row lock that serializes units for one session.
const lockSessionQuery = `SELECT id FROM sessions WHERE id = $1 AND expires_at > NOW() FOR UPDATE`

// UnitOfWork runs each unit in a read-committed transaction holding the
// session row lock.
type UnitOfWork struct {
	db       *sql.DB
	sessions *sessionpg.Store
}

// New creates a unit of work. sessions is rebound to each transaction.
func New(db *sql.DB, sessions *sessionpg.Store) *UnitOfWork {
	return &UnitOfWork{db: db, sessions: sessions}
}

// Do begins a transaction, locks the session row, runs fn with stores bound
// to the transaction, and commits. Any failure rolls the transaction back.
func (u *UnitOfWork) Do(ctx context.Context, sessionID string, fn func(ctx context.Context, unit tracking.Unit) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return database.Unavailable("beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx, lockSessionQuery, sessionID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	if err != nil {
		return database.Unavailable("locking session", err)
	}

	unit := tracking.Unit{
		Events: tallypg.New(tx),
		Guard:  u.sessions.WithTx(tx),
	}
	if err := fn(ctx, unit); err != nil {
		if code := database.Code(err); code != "" {
			slog.Warn("tracking: unit rolled back", "session_id", sessionID, "sqlstate", code, "error", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return database.Unavailable("committing unit", err)
	}
	return nil
}

// Verify interface compliance.
var _ tracking.UnitOfWork = (*UnitOfWork)(nil)
