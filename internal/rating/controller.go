package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
)

var ErrSubmissionInFlight = errors.New("rating submission already in flight")

type Submitter interface {
	SubmitRating(ctx context.Context, queryID string, update dto.RatingUpdate) (*dto.RatingResponse, error)
}

type gatewaySubmitter struct {
	client *gateway.Client
	creds  gateway.Credentials
}

func NewGatewaySubmitter(client *gateway.Client, creds gateway.Credentials) Submitter {
	return &gatewaySubmitter{client: client, creds: creds}
}

func (s *gatewaySubmitter) SubmitRating(ctx context.Context, queryID string, update dto.RatingUpdate) (*dto.RatingResponse, error) {
	return s.client.SubmitRating(ctx, s.creds, queryID, update)
}

// Controller holds the displayed rating of one (query, kind) pair. The
// displayed value changes before the request is sent and is rolled back
// if the request fails.
type Controller struct {
	mu         sync.Mutex
	queryID    string
	kind       dto.ResponseKind
	submitter  Submitter
	current    *dto.RatingValue
	submitting bool
}

func NewController(queryID string, kind dto.ResponseKind, initial *dto.RatingValue, submitter Submitter) *Controller {
	c := &Controller{queryID: queryID, kind: kind, submitter: submitter}
	if initial != nil {
		v := *initial
		c.current = &v
	}
	return c
}

// Submit sends value and returns the server-confirmed rating. While one
// submission is outstanding, others fail with ErrSubmissionInFlight.
func (c *Controller) Submit(ctx context.Context, value dto.RatingValue) (dto.RatingValue, error) {
	if !value.Valid() {
		return "", fmt.Errorf("invalid rating value %q", value)
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	previous := c.current
	optimistic := value
	c.current = &optimistic
	c.submitting = true
	c.mu.Unlock()

	resp, err := c.submitter.SubmitRating(ctx, c.queryID, dto.RatingUpdate{ResponseKind: c.kind, Value: value})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if err != nil {
		c.current = previous
		return "", err
	}

	confirmed := value
	if resp != nil && resp.RatingValue.Valid() {
		confirmed = resp.RatingValue
	}
	c.current = &confirmed
	return confirmed, nil
}

// Current is the displayed rating, nil when the answer was never rated.
func (c *Controller) Current() *dto.RatingValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	v := *c.current
	return &v
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Controller) State() dto.RatingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := dto.RatingState{ResponseKind: c.kind, Submitting: c.submitting}
	if c.current != nil {
		v := *c.current
		st.Value = &v
	}
	return st
}
