package database

import (
	"context"
	"errors"
	"time"
)

// DefaultStoreTimeout bounds one store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// WithTimeout derives the context a store call runs under. A non-positive
// timeout falls back to DefaultStoreTimeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Classify maps deadline and cancellation failures to ErrUnavailable so a
// stalled store surfaces the same way as a refused connection. Other errors
// are returned unchanged.
func Classify(op string, err error) error {
	if err == nil || IsUnavailable(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(op, err)
	}
	return err
}
