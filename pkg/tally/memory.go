package tally

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
)

// MemoryStore implements Store with an in-process event log. It is used in
// development mode and tests; it does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty in-memory tally store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records one event.
func (s *MemoryStore) Append(ctx context.Context, resource, behavior string) error {
	if err := ctx.Err(); err != nil {
		return database.Unavailable("appending event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, Event{
		Resource:   resource,
		Behavior:   behavior,
		RecordedAt: time.Now().UTC(),
	})
	return nil
}

// Aggregate returns counts grouped by behavior for resource.
func (s *MemoryStore) Aggregate(ctx context.Context, resource string) (Tally, error) {
	if err := ctx.Err(); err != nil {
		return nil, database.Unavailable("aggregating events", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(Tally)
	for _, e := range s.events {
		if e.Resource == resource {
			result[e.Behavior]++
		}
	}
	return result, nil
}

// Resources lists every resource with at least one event, sorted.
func (s *MemoryStore) Resources(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, database.Unavailable("listing resources", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	resources := make([]string, 0)
	for _, e := range s.events {
		if _, ok := seen[e.Resource]; ok {
			continue
		}
		seen[e.Resource] = struct{}{}
		resources = append(resources, e.Resource)
	}
	slices.Sort(resources)
	return resources, nil
}

// Len returns the number of recorded events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
