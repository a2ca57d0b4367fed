// FILE: internal/dto/rating_dto.go
package dto

type RatingValue string

const (
	RatingUp   RatingValue = "up"
	RatingDown RatingValue = "down"
)

func (v RatingValue) Valid() bool {
	return v == RatingUp || v == RatingDown
}

type RatingSummary struct {
	Value RatingValue `json:"value"`
}

// RatingUpdate is the only payload accepted by the rating endpoint.
type RatingUpdate struct {
	ResponseKind ResponseKind `json:"response_type" validate:"required,oneof=fast accurate"`
	Value        RatingValue  `json:"rating_value" validate:"required,oneof=up down"`
}

type RatingResponse struct {
	RatingId     string       `json:"rating_id"`
	QueryId      string       `json:"query_id"`
	ResponseType ResponseKind `json:"response_type"`
	RatingValue  RatingValue  `json:"rating_value"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
}

// RatingState is what the page shows for one (query, kind) pair.
type RatingState struct {
	ResponseKind ResponseKind `json:"response_type"`
	Value        *RatingValue `json:"rating_value"`
	Submitting   bool         `json:"submitting"`
}
