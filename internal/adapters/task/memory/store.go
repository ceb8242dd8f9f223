package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"3tcapital/saftprocessor/internal/core/task"
)

// Store keeps task records in process. Entries older than the TTL are dropped on write.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]task.Task
	ttl   time.Duration
	now   func() time.Time
}

var _ task.Store = (*Store)(nil)

// NewStore creates an in-memory store. A non-positive ttl defaults to 24 hours.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{tasks: make(map[string]task.Task), ttl: ttl, now: time.Now}
}

func (s *Store) Save(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t
	cutoff := s.now().Add(-s.ttl)
	for id, existing := range s.tasks {
		if existing.EnqueuedAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) Recent(_ context.Context, limit int) ([]task.Task, error) {
	s.mu.RLock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
