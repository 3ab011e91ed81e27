package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

// DefaultTimeout bounds one Track call when Config.Timeout is zero.
const DefaultTimeout = database.DefaultStoreTimeout

// slogKeyError is the slog attribute key for error values.
const slogKeyError = "error"

// Config configures the tracking service.
type Config struct {
	// UnitOfWork runs the append and the mark atomically.
	UnitOfWork UnitOfWork

	// Guard answers the fast-path HasResponded check outside the unit.
	Guard session.Guard

	// Tallies serves the aggregate read after the unit commits.
	Tallies tally.Reader

	// Timeout bounds each Track call. Exceeding it yields database.ErrUnavailable.
	Timeout time.Duration

	// Metrics is optional.
	Metrics *Metrics
}

// Service implements the track operation.
type Service struct {
	uow     UnitOfWork
	guard   session.Guard
	tallies tally.Reader
	timeout time.Duration
	metrics *Metrics
}

// NewService creates a tracking service.
func NewService(cfg Config) (*Service, error) {
	if cfg.UnitOfWork == nil || cfg.Guard == nil || cfg.Tallies == nil {
		return nil, errors.New("tracking: unit of work, guard, and tallies are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Service{
		uow:     cfg.UnitOfWork,
		guard:   cfg.Guard,
		tallies: cfg.Tallies,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
	}, nil
}

// Track records behavior for resource on behalf of sessionID if the session
// has not responded to resource yet, then returns the resource's tally. The
// returned tally includes this submission when it was recorded.
//
// A second call for the same session and resource appends nothing; the first
// behavior stays authoritative. Store failures and timeouts return an error
// matching database.ErrUnavailable, and leave neither the event nor the mark
// behind, so the caller may retry.
func (s *Service) Track(ctx context.Context, sessionID, resource, behavior string) (tally.Tally, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	recorded, err := s.record(ctx, sessionID, resource, behavior)
	if err != nil {
		s.metrics.observe(OutcomeFailed)
		return nil, classify(err)
	}
	if recorded {
		s.metrics.observe(OutcomeRecorded)
	} else {
		s.metrics.observe(OutcomeDuplicate)
	}

	result, err := s.tallies.Aggregate(ctx, resource)
	if err != nil {
		return nil, classify(fmt.Errorf("reading tally: %w", err))
	}
	return result, nil
}

// record reports whether a new event was appended.
func (s *Service) record(ctx context.Context, sessionID, resource, behavior string) (bool, error) {
	responded, err := s.guard.HasResponded(ctx, sessionID, resource)
	if err != nil {
		return false, fmt.Errorf("checking guard: %w", err)
	}
	if responded {
		slog.Debug("tracking: duplicate submission", "session_id", sessionID, "resource", resource)
		return false, nil
	}

	var recorded bool
	err = s.uow.Do(ctx, sessionID, func(ctx context.Context, u Unit) error {
		// A concurrent unit for this session may have committed since the
		// fast-path check; the unit holds the session lock now.
		responded, err := u.Guard.HasResponded(ctx, sessionID, resource)
		if err != nil {
			return fmt.Errorf("rechecking guard: %w", err)
		}
		if responded {
			return nil
		}
		if err := u.Events.Append(ctx, resource, behavior); err != nil {
			return fmt.Errorf("appending event: %w", err)
		}
		if err := u.Guard.MarkResponded(ctx, sessionID, resource, behavior); err != nil {
			return fmt.Errorf("marking session: %w", err)
		}
		recorded = true
		return nil
	})
	if errors.Is(err, session.ErrAlreadyResponded) {
		slog.Error("tracking: internal inconsistency",
			"session_id", sessionID, "resource", resource, slogKeyError, err)
	}
	if err != nil {
		return false, err
	}
	if recorded {
		slog.Debug("tracking: recorded", "session_id", sessionID, "resource", resource, "behavior", behavior)
	}
	return recorded, nil
}

// classify maps deadline and cancellation failures into ErrUnavailable so
// every store-side failure has one error identity at the boundary.
func classify(err error) error {
	return database.Classify("tracking", err)
}
