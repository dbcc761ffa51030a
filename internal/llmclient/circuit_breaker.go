package llmclient

import (
	"log/slog"
	"sync"
	"time"

	"gengateway/config"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker guards one vendor. It opens after FailureThreshold consecutive
// failures, admits a single probe once Timeout has elapsed, and closes again
// after SuccessThreshold successful probes. One Breaker is shared by every
// client talking to the same vendor.
type Breaker struct {
	provider string
	cfg      config.CircuitBreakerConfig
	now      func() time.Time

	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// NewBreaker creates a closed breaker for provider.
func NewBreaker(provider string, cfg config.CircuitBreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{provider: provider, cfg: cfg, now: time.Now}
}

// allow reports whether a request may reach the vendor.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			return false
		}
		b.transition(breakerHalfOpen)
		b.probing = true
		return true
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != breakerHalfOpen {
		return
	}
	b.probing = false
	b.successes++
	if b.successes >= b.cfg.SuccessThreshold {
		b.transition(breakerClosed)
	}
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case breakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case breakerHalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.transition(breakerOpen)
}

// transition moves to next. Callers hold b.mu.
func (b *Breaker) transition(next breakerState) {
	if b.state == next {
		return
	}
	slog.Warn("circuit breaker state change",
		"provider", b.provider,
		"from", b.state.String(),
		"to", next.String(),
		"failures", b.failures,
	)
	b.state = next
	b.successes = 0
	b.probing = false
}

func (b *Breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// State reports "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.current().String()
}
