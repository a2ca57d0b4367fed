package rating

import (
	"sync"

	"prawnik-web/internal/dto"
)

type key struct {
	queryID string
	kind    dto.ResponseKind
}

// Registry keeps one Controller per (query, kind) for a session.
type Registry struct {
	mu          sync.Mutex
	submitter   Submitter
	controllers map[key]*Controller
}

func NewRegistry(submitter Submitter) *Registry {
	return &Registry{submitter: submitter, controllers: make(map[key]*Controller)}
}

func (r *Registry) Get(queryID string, kind dto.ResponseKind) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(queryID, kind, nil)
}

func (r *Registry) getLocked(queryID string, kind dto.ResponseKind, initial *dto.RatingValue) *Controller {
	k := key{queryID: queryID, kind: kind}
	if c, ok := r.controllers[k]; ok {
		return c
	}
	c := NewController(queryID, kind, initial, r.submitter)
	r.controllers[k] = c
	return c
}

// Seed creates controllers from ratings already stored on the backend.
// Existing controllers are left alone so a submission in flight is not
// overwritten by an older server view.
func (r *Registry) Seed(detail *dto.QueryDetail) {
	if detail == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if detail.FastResponse.Rating != nil {
		v := detail.FastResponse.Rating.Value
		r.getLocked(detail.QueryId, dto.KindFast, &v)
	}
	if detail.AccurateResponse != nil && detail.AccurateResponse.Rating != nil {
		v := detail.AccurateResponse.Rating.Value
		r.getLocked(detail.QueryId, dto.KindAccurate, &v)
	}
}

// States lists the rating state of both kinds of a query.
func (r *Registry) States(queryID string) []dto.RatingState {
	r.mu.Lock()
	fast := r.controllers[key{queryID, dto.KindFast}]
	accurate := r.controllers[key{queryID, dto.KindAccurate}]
	r.mu.Unlock()

	states := []dto.RatingState{{ResponseKind: dto.KindFast}, {ResponseKind: dto.KindAccurate}}
	if fast != nil {
		states[0] = fast.State()
	}
	if accurate != nil {
		states[1] = accurate.State()
	}
	return states
}

// Forget drops the controllers of a deleted query.
func (r *Registry) Forget(queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, key{queryID, dto.KindFast})
	delete(r.controllers, key{queryID, dto.KindAccurate})
}
