// FILE: internal/dto/query_dto.go
package dto

// ProcessingStatus is the lifecycle status of a query or of one of its response slots.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the backend will not change this status anymore.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResponseKind identifies which of the two answers a slot, rating or poller refers to.
type ResponseKind string

const (
	KindFast     ResponseKind = "fast"
	KindAccurate ResponseKind = "accurate"
)

func (k ResponseKind) Valid() bool {
	return k == KindFast || k == KindAccurate
}

type SourceReference struct {
	ActTitle string `json:"act_title"`
	Article  string `json:"article"`
	Link     string `json:"link"`
	ChunkId  string `json:"chunk_id"`
}

type RatingDetail struct {
	RatingId  string      `json:"rating_id,omitempty"`
	Value     RatingValue `json:"value"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// ResponseSlot is one answer (fast or accurate). Content and Sources are only
// present when Status is completed.
type ResponseSlot struct {
	Status               ProcessingStatus  `json:"status"`
	Content              string            `json:"content,omitempty"`
	ModelName            string            `json:"model_name,omitempty"`
	GenerationTimeMs     int64             `json:"generation_time_ms,omitempty"`
	Sources              []SourceReference `json:"sources,omitempty"`
	Rating               *RatingDetail     `json:"rating,omitempty"`
	EstimatedTimeSeconds int               `json:"estimated_time_seconds,omitempty"`
}

// Normalize drops content fields of a slot that is not completed.
func (s *ResponseSlot) Normalize() {
	if s == nil || s.Status == StatusCompleted {
		return
	}
	s.Content = ""
	s.Sources = nil
}

type QuerySubmitRequest struct {
	QueryText string `json:"query_text" form:"query_text" validate:"required,min=10,max=1000"`
}

type QuerySubmitResponse struct {
	QueryId      string           `json:"query_id"`
	QueryText    string           `json:"query_text"`
	Status       ProcessingStatus `json:"status"`
	CreatedAt    string           `json:"created_at"`
	FastResponse ResponseSlot     `json:"fast_response"`
}

// QueryDetail mirrors GET /api/v1/queries/{id}. A nil AccurateResponse means
// the accurate answer was never requested.
type QueryDetail struct {
	QueryId          string           `json:"query_id"`
	QueryText        string           `json:"query_text"`
	Status           ProcessingStatus `json:"status"`
	CreatedAt        string           `json:"created_at"`
	FastResponse     ResponseSlot     `json:"fast_response"`
	AccurateResponse *ResponseSlot    `json:"accurate_response"`
}

func (q *QueryDetail) Normalize() {
	q.FastResponse.Normalize()
	q.AccurateResponse.Normalize()
}

type AccurateSubmitResponse struct {
	QueryId          string       `json:"query_id"`
	AccurateResponse ResponseSlot `json:"accurate_response"`
}

type QueryListFastSummary struct {
	Content          string         `json:"content"`
	ModelName        string         `json:"model_name"`
	GenerationTimeMs int64          `json:"generation_time_ms"`
	SourcesCount     int            `json:"sources_count"`
	Rating           *RatingSummary `json:"rating,omitempty"`
}

type QueryListAccurateSummary struct {
	Exists           bool           `json:"exists"`
	ModelName        string         `json:"model_name,omitempty"`
	GenerationTimeMs int64          `json:"generation_time_ms,omitempty"`
	Rating           *RatingSummary `json:"rating,omitempty"`
}

type QueryListItem struct {
	QueryId          string                    `json:"query_id"`
	QueryText        string                    `json:"query_text"`
	CreatedAt        string                    `json:"created_at"`
	FastResponse     QueryListFastSummary      `json:"fast_response"`
	AccurateResponse *QueryListAccurateSummary `json:"accurate_response"`
}

type PaginationMetadata struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
}

type QueryListResponse struct {
	Queries    []QueryListItem    `json:"queries"`
	Pagination PaginationMetadata `json:"pagination"`
}

type ExampleQuestion struct {
	Id       int    `json:"id"`
	Question string `json:"question"`
	Category string `json:"category"`
}

type ExampleQuestionsResponse struct {
	Examples []ExampleQuestion `json:"examples"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
