// Package tracking records a visitor's first behavior for a resource and
// returns the resource's aggregate tally.
//
// The append to the tally store and the mark on the session guard run as one
// unit of work: both are committed or neither is. A repeated submission from
// the same session is a no-op that still returns the current tally.
package tracking

import (
	"context"

	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

// Unit is the set of writers available inside a unit of work. Writes made
// through it become visible only when the unit commits.
type Unit struct {
	Events tally.Appender
	Guard  session.Guard
}

// UnitOfWork runs fn atomically for one session. Implementations serialize
// concurrent units for the same session, so a guard check made inside fn
// cannot be invalidated before commit.
//
// If fn returns an error, nothing fn wrote is kept. If the session does not
// exist, Do returns session.ErrNotFound without calling fn.
type UnitOfWork interface {
	Do(ctx context.Context, sessionID string, fn func(ctx context.Context, u Unit) error) error
}
