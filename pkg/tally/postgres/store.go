// Package postgres provides PostgreSQL storage for tracked behavior events.
package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/tally"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements tally.Store against the track_events table.
type Store struct {
	q database.DBTX
}

// New creates a tally store bound to q, which may be the pool or an open
// transaction.
func New(q database.DBTX) *Store {
	return &Store{q: q}
}

// Append inserts one event. recorded_at is assigned by the database.
func (s *Store) Append(ctx context.Context, resource, behavior string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO track_events (resource, behavior) VALUES ($1, $2)`,
		resource, behavior,
	)
	return database.Unavailable("inserting track event", err)
}

// Aggregate returns counts grouped by behavior for resource.
func (s *Store) Aggregate(ctx context.Context, resource string) (tally.Tally, error) {
	query, args, err := psq.Select("behavior", "COUNT(*)").
		From("track_events").
		Where(sq.Eq{"resource": resource}).
		GroupBy("behavior").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building aggregate query: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Unavailable("aggregating track events", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(tally.Tally)
	for rows.Next() {
		var behavior string
		var count int64
		if err := rows.Scan(&behavior, &count); err != nil {
			return nil, database.Unavailable("scanning aggregate row", err)
		}
		result[behavior] = count
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterating aggregate rows", err)
	}
	return result, nil
}

// Resources lists every resource with at least one event, sorted.
func (s *Store) Resources(ctx context.Context) ([]string, error) {
	query, args, err := psq.Select("resource").
		Distinct().
		From("track_events").
		OrderBy("resource").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building resources query: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Unavailable("listing resources", err)
	}
	defer func() { _ = rows.Close() }()

	resources := make([]string, 0)
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, database.Unavailable("scanning resource row", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterating resource rows", err)
	}
	return resources, nil
}

// Verify interface compliance.
var _ tally.Store = (*Store)(nil)
