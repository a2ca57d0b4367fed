package gateway

import (
	"net/http"
	"strconv"
	"time"
)

const (
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// RateLimitSnapshot is the last quota usage reported by the backend. It is
// advisory only.
type RateLimitSnapshot struct {
	Used    int
	Limit   int
	ResetAt time.Time
}

// parseRateLimit returns nil unless all three headers are present and numeric.
func parseRateLimit(h http.Header) *RateLimitSnapshot {
	limit, err := strconv.Atoi(h.Get(headerRateLimit))
	if err != nil || limit < 0 {
		return nil
	}
	remaining, err := strconv.Atoi(h.Get(headerRateRemaining))
	if err != nil || remaining < 0 {
		return nil
	}
	reset, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64)
	if err != nil {
		return nil
	}

	used := limit - remaining
	if used < 0 {
		used = 0
	}
	return &RateLimitSnapshot{
		Used:    used,
		Limit:   limit,
		ResetAt: time.Unix(reset, 0).UTC(),
	}
}
