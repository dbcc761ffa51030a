// Package jobs provides a journal of asynchronous image jobs.
// The journal records job lifecycle for operators; it never stores generated images.
// Supports an in-memory backend and Redis for multi-instance deployments.
package jobs

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long an entry survives after its last update.
const DefaultTTL = 24 * time.Hour

// State is the lifecycle state of an asynchronous job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateReady     State = "ready"
	StateError     State = "error"
	StateModerated State = "moderated"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further polls will happen in this state.
func (s State) Terminal() bool {
	switch s {
	case StateReady, StateError, StateModerated, StateTimedOut:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned by Get when the journal has no entry for the id.
var ErrNotFound = errors.New("job not found")

// Job is one journal entry.
type Job struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	RequestID   string    `json:"request_id,omitempty"`
	PollingURL  string    `json:"polling_url,omitempty"`
	State       State     `json:"state"`
	Polls       int       `json:"polls"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the interface for job journal storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces the entry for job.ID.
	Save(ctx context.Context, job *Job) error

	// Get returns the entry for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Recent returns up to limit entries, newest submission first.
	Recent(ctx context.Context, limit int) ([]*Job, error)

	// Close releases any resources held by the store.
	Close() error
}

// NopStore discards every entry.
type NopStore struct{}

func (NopStore) Save(context.Context, *Job) error { return nil }

func (NopStore) Get(context.Context, string) (*Job, error) { return nil, ErrNotFound }

func (NopStore) Recent(context.Context, int) ([]*Job, error) { return nil, nil }

func (NopStore) Close() error { return nil }
