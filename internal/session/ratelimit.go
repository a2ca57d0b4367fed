package session

import (
	"sync"
	"time"

	"prawnik-web/internal/gateway"
)

// RateLimitTracker keeps the last quota snapshot reported by the backend.
// It never blocks a submission; the backend enforces the quota.
type RateLimitTracker struct {
	mu           sync.Mutex
	defaultLimit int
	snapshot     *gateway.RateLimitSnapshot
}

func NewRateLimitTracker(defaultLimit int) *RateLimitTracker {
	return &RateLimitTracker{defaultLimit: defaultLimit}
}

// Observe replaces the stored snapshot wholesale. nil is ignored.
func (t *RateLimitTracker) Observe(s *gateway.RateLimitSnapshot) {
	if s == nil {
		return
	}
	cp := *s
	t.mu.Lock()
	t.snapshot = &cp
	t.mu.Unlock()
}

// Current returns used, limit and reset time. Before any observation it
// reports zero usage against the configured default limit and a nil reset.
func (t *RateLimitTracker) Current() (used, limit int, resetAt *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot == nil {
		return 0, t.defaultLimit, nil
	}
	reset := t.snapshot.ResetAt
	return t.snapshot.Used, t.snapshot.Limit, &reset
}

func (t *RateLimitTracker) CanSubmit() bool {
	used, limit, _ := t.Current()
	return used < limit
}
