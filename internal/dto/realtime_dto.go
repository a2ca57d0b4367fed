// FILE: internal/dto/realtime_dto.go
package dto

import "time"

// Event types pushed to the browser over the websocket.
const (
	EventFastState     = "fast_state"
	EventAccurateState = "accurate_state"
	EventCacheState    = "cache_state"
	EventActiveQueries = "active_queries"
	EventRateLimit     = "rate_limit"
)

// PollState is the public snapshot of a poller. Retryable is set on every
// terminal error so the page always renders a retry control.
type PollState struct {
	QueryId   string        `json:"query_id"`
	Kind      ResponseKind  `json:"kind"`
	Phase     string        `json:"phase"`
	Query     *QueryDetail  `json:"query,omitempty"`
	Slot      *ResponseSlot `json:"slot,omitempty"`
	ErrorCode ErrorCode     `json:"error_code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Retryable bool          `json:"retryable"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type CacheState struct {
	QueryId          string    `json:"query_id"`
	SecondsRemaining int       `json:"seconds_remaining"`
	IsExpiring       bool      `json:"is_expiring"`
	IsExpired        bool      `json:"is_expired"`
	Invalid          bool      `json:"invalid"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type RateLimitState struct {
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	ResetAt   *time.Time `json:"reset_at"`
	CanSubmit bool       `json:"can_submit"`
}

type ActiveQueriesState struct {
	Count    int      `json:"count"`
	Max      int      `json:"max"`
	CanAdd   bool     `json:"can_add"`
	QueryIds []string `json:"query_ids"`
}

// QueryView is returned by GET /app/api/queries/:id.
type QueryView struct {
	Fast     *PollState    `json:"fast"`
	Accurate *PollState    `json:"accurate"`
	Cache    *CacheState   `json:"cache"`
	Ratings  []RatingState `json:"ratings"`
}

type SubmitQueryResponse struct {
	Query  QuerySubmitResponse `json:"query"`
	Cache  CacheState          `json:"cache"`
	Active ActiveQueriesState  `json:"active"`
}

type HistoryPage struct {
	Items        []QueryListItem `json:"items"`
	Remaining    int             `json:"remaining"`
	CanLoadMore  bool            `json:"can_load_more"`
	ScrollAnchor string          `json:"scroll_anchor,omitempty"`
	Page         int             `json:"page"`
	TotalCount   int             `json:"total_count"`
}
