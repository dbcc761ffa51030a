package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
// This is suitable for single-instance deployments. Entries expire ttl after
// their last Save, matching the Redis backend.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	job       Job
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory journal with DefaultTTL.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(DefaultTTL)
}

// NewMemoryStoreWithTTL creates an empty in-memory journal. A non-positive ttl means DefaultTTL.
func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		jobs: make(map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Save stores a copy of job and drops expired entries.
func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.jobs {
		if !now.Before(e.expiresAt) {
			delete(s.jobs, id)
		}
	}
	s.jobs[job.ID] = memoryEntry{job: *job, expiresAt: now.Add(s.ttl)}
	return nil
}

// Get returns a copy of the stored entry.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	job := e.job
	return &job, nil
}

// Recent returns up to limit live entries, newest submission first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	now := s.now()
	out := make([]*Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		if !now.Before(e.expiresAt) {
			continue
		}
		j := e.job
		out = append(out, &j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].SubmittedAt.After(out[k].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
