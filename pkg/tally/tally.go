// Package tally records behavior events for trackable resources and derives
// per-behavior counts from them. Events are append-only; counts are never
// stored, only computed at read time.
package tally

import (
	"context"
	"time"
)

// Event is an immutable record that one visitor chose behavior on resource.
type Event struct {
	Resource   string    `json:"resource"`
	Behavior   string    `json:"behavior"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Tally maps behavior to the number of recorded events for one resource.
// A resource with no events has an empty, non-nil Tally.
type Tally map[string]int64

// Total returns the number of events across all behaviors.
func (t Tally) Total() int64 {
	var n int64
	for _, c := range t {
		n += c
	}
	return n
}

// Appender adds events. Repeated calls with the same pair are legal and each
// adds one to that behavior's count.
type Appender interface {
	Append(ctx context.Context, resource, behavior string) error
}

// Reader derives counts from recorded events.
type Reader interface {
	// Aggregate returns counts grouped by behavior for resource.
	Aggregate(ctx context.Context, resource string) (Tally, error)

	// Resources lists every resource with at least one event, sorted.
	Resources(ctx context.Context) ([]string, error)
}

// Store is the durable tally store.
type Store interface {
	Appender
	Reader
}
