package contextcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"prawnik-web/internal/dto"
)

const (
	DefaultTTL        = 300 * time.Second
	ExpiringThreshold = 60 * time.Second
)

var ErrContextExpired = errors.New("query context cache expired")

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseCreatedAt accepts RFC 3339 and the zone-less ISO timestamps the
// backend emits, which are UTC.
func ParseCreatedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

type Status struct {
	SecondsRemaining int
	IsExpiring       bool
	IsExpired        bool
	Invalid          bool
	ExpiresAt        time.Time
}

// Compute projects the cache window of a query created at createdAt onto
// now. Remaining time is floored to whole seconds.
func Compute(createdAt string, now time.Time, ttl time.Duration) Status {
	created, err := ParseCreatedAt(createdAt)
	if err != nil {
		return Status{Invalid: true}
	}

	expiresAt := created.Add(ttl)
	remaining := expiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	seconds := int(remaining / time.Second)

	return Status{
		SecondsRemaining: seconds,
		IsExpiring:       seconds > 0 && time.Duration(seconds)*time.Second < ExpiringThreshold,
		IsExpired:        seconds == 0,
		ExpiresAt:        expiresAt,
	}
}

func (s Status) phase() string {
	switch {
	case s.Invalid:
		return "invalid"
	case s.IsExpired:
		return "expired"
	case s.IsExpiring:
		return "expiring"
	default:
		return "active"
	}
}

func (s Status) State(queryID string) dto.CacheState {
	return dto.CacheState{
		QueryId:          queryID,
		SecondsRemaining: s.SecondsRemaining,
		IsExpiring:       s.IsExpiring,
		IsExpired:        s.IsExpired,
		Invalid:          s.Invalid,
		ExpiresAt:        s.ExpiresAt,
	}
}

// Guard refuses work that depends on the cached context once it expired.
// An unparseable timestamp does not block.
func Guard(createdAt string, now time.Time, ttl time.Duration) error {
	if st := Compute(createdAt, now, ttl); st.IsExpired && !st.Invalid {
		return ErrContextExpired
	}
	return nil
}

// Watch re-evaluates the window every interval and calls onChange with the
// first status and on every transition (active, expiring, expired). It
// returns once the window expired, the timestamp is invalid or ctx ends.
func Watch(ctx context.Context, createdAt string, ttl, interval time.Duration, now func() time.Time, onChange func(Status)) {
	if now == nil {
		now = time.Now
	}

	last := Compute(createdAt, now(), ttl)
	onChange(last)
	if last.Invalid || last.IsExpired {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := Compute(createdAt, now(), ttl)
		if st.phase() != last.phase() {
			onChange(st)
		}
		last = st
		if st.IsExpired {
			return
		}
	}
}
