package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"prawnik-web/internal/dto"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ListParams are clamped by ListQueries: page >= 1, per page in 1..100,
// order asc or desc (default desc).
type ListParams struct {
	Page    int
	PerPage int
	Order   string
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}

// AccurateStart is the outcome of asking for the accurate answer.
// AlreadyStarted is set when the backend answered 409.
type AccurateStart struct {
	AlreadyStarted bool
	Response       *dto.AccurateSubmitResponse
}

func queryPath(id string) string {
	return "/api/v1/queries/" + url.PathEscape(id)
}

func (c *Client) SubmitQuery(ctx context.Context, creds Credentials, text string) (*dto.QuerySubmitResponse, *RateLimitSnapshot, error) {
	var out dto.QuerySubmitResponse
	snapshot, err := c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           "/api/v1/queries",
		Body:           dto.QuerySubmitRequest{QueryText: text},
		Credentials:    creds,
		TrackRateLimit: true,
	}, &out)
	if err != nil {
		return nil, snapshot, err
	}
	out.FastResponse.Normalize()
	return &out, snapshot, nil
}

func (c *Client) GetQuery(ctx context.Context, creds Credentials, id string) (*dto.QueryDetail, error) {
	var out dto.QueryDetail
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: queryPath(id), Credentials: creds}, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

func (c *Client) RequestAccurate(ctx context.Context, creds Credentials, id string) (*AccurateStart, error) {
	var out dto.AccurateSubmitResponse
	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        queryPath(id) + "/accurate-response",
		Credentials: creds,
	}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return &AccurateStart{AlreadyStarted: true}, nil
		}
		return nil, err
	}
	return &AccurateStart{Response: &out}, nil
}

func (c *Client) SubmitRating(ctx context.Context, creds Credentials, id string, update dto.RatingUpdate) (*dto.RatingResponse, error) {
	var out dto.RatingResponse
	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        queryPath(id) + "/ratings",
		Body:        update,
		Credentials: creds,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListQueries(ctx context.Context, creds Credentials, params ListParams) (*dto.QueryListResponse, error) {
	params = params.normalized()
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("per_page", strconv.Itoa(params.PerPage))
	q.Set("order", params.Order)

	var out dto.QueryListResponse
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/queries", Query: q, Credentials: creds}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuery(ctx context.Context, creds Credentials, id string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: queryPath(id), Credentials: creds}, nil)
	return err
}

func (c *Client) DeleteAccount(ctx context.Context, creds Credentials) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/api/v1/users/me", Credentials: creds}, nil)
	return err
}

func (c *Client) ExampleQuestions(ctx context.Context) (*dto.ExampleQuestionsResponse, error) {
	var out dto.ExampleQuestionsResponse
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/onboarding/example-questions"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var out dto.HealthResponse
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/health"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
