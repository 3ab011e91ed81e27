package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrUnavailable reports that the durable store could not serve a read or
// accept a write: connection loss, timeout, or a rejected statement.
var ErrUnavailable = errors.New("store unavailable")

// Unavailable wraps err so that errors.Is(result, ErrUnavailable) holds while
// the original cause stays inspectable. A nil err returns nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// IsUnavailable reports whether err carries ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Code returns the SQLSTATE of a PostgreSQL error, or "" when err did not
// come from the server.
func Code(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
