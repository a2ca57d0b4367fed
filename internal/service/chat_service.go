// FILE: internal/service/chat_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prawnik-web/internal/contextcache"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/polling"
	"prawnik-web/internal/session"
	pkgEvents "prawnik-web/pkg/events"

	"github.com/google/uuid"
)

const pendingPrefix = "pending-"

// SessionPublisher pushes realtime and analytics events.
type SessionPublisher interface {
	PublishSession(sessionID, eventType string, data interface{})
	PublishAnalytics(eventType string, data map[string]interface{})
}

type IChatService interface {
	Submit(ctx context.Context, s *session.State, req *dto.QuerySubmitRequest) (*dto.SubmitQueryResponse, error)
	View(ctx context.Context, s *session.State, queryID string) (*dto.QueryView, error)
	RetryFast(ctx context.Context, s *session.State, queryID string) (*dto.PollState, error)
	RequestAccurate(ctx context.Context, s *session.State, queryID string) (*dto.PollState, error)
	Rate(ctx context.Context, s *session.State, queryID string, req *dto.RatingUpdate) (*dto.RatingState, error)
	RateLimit(s *session.State) dto.RateLimitState
	ActiveQueries(s *session.State) dto.ActiveQueriesState
	Examples(ctx context.Context) ([]dto.ExampleQuestion, error)
}

type ChatConfig struct {
	CacheTTL      time.Duration
	CacheTickEach time.Duration
}

type chatService struct {
	client    *gateway.Client
	publisher SessionPublisher
	cfg       ChatConfig
	metrics   *metrics.Collectors
	logger    logger.ILogger
	now       func() time.Time
}

func NewChatService(client *gateway.Client, publisher SessionPublisher, cfg ChatConfig, m *metrics.Collectors, log logger.ILogger) IChatService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = contextcache.DefaultTTL
	}
	if cfg.CacheTickEach <= 0 {
		cfg.CacheTickEach = time.Second
	}
	return &chatService{
		client:    client,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
}

// Submit reserves a concurrency slot before calling the backend, so a
// rejected submission never reaches the network.
func (cs *chatService) Submit(ctx context.Context, s *session.State, req *dto.QuerySubmitRequest) (*dto.SubmitQueryResponse, error) {
	pending := pendingPrefix + uuid.NewString()
	if !s.Active.TryAdd(pending) {
		cs.metrics.ObserveRejectedSubmission("too_many_active")
		return nil, session.ErrTooManyActiveQueries
	}

	resp, snapshot, err := cs.client.SubmitQuery(ctx, s, strings.TrimSpace(req.QueryText))
	s.RateLimit.Observe(snapshot)
	if err != nil {
		s.Active.Remove(pending)
		if gateway.ErrorCodeOf(err) == dto.ErrRateLimitExceeded {
			cs.metrics.ObserveRejectedSubmission("rate_limited")
		}
		cs.publishCounters(s)
		return nil, fmt.Errorf("submit query: %w", err)
	}

	s.Active.Replace(pending, resp.QueryId)
	s.RememberQuery(resp.QueryId, resp.CreatedAt)
	s.Polls.StartFast(resp.QueryId)
	cs.watchCache(s, resp.QueryId, resp.CreatedAt)
	cs.publishCounters(s)
	cs.publisher.PublishAnalytics(pkgEvents.QuerySubmitted, map[string]interface{}{
		"query_id":     resp.QueryId,
		"query_length": len([]rune(resp.QueryText)),
	})

	cs.logger.Info("ChatService", "Query submitted", map[string]interface{}{
		"session_id": s.ID,
		"query_id":   resp.QueryId,
	})

	return &dto.SubmitQueryResponse{
		Query:  *resp,
		Cache:  contextcache.Compute(resp.CreatedAt, cs.now(), cs.cfg.CacheTTL).State(resp.QueryId),
		Active: cs.ActiveQueries(s),
	}, nil
}

func (cs *chatService) watchCache(s *session.State, queryID, createdAt string) {
	go contextcache.Watch(s.Context(), createdAt, cs.cfg.CacheTTL, cs.cfg.CacheTickEach, cs.now, func(st contextcache.Status) {
		cs.publisher.PublishSession(s.ID, dto.EventCacheState, st.State(queryID))
	})
}

func (cs *chatService) publishCounters(s *session.State) {
	cs.publisher.PublishSession(s.ID, dto.EventActiveQueries, activeQueriesState(s.Active))
	cs.publisher.PublishSession(s.ID, dto.EventRateLimit, rateLimitState(s.RateLimit))
}

// View combines the live poller states with the cache timer and ratings.
// Queries without a fast poller in this session are read from the backend.
func (cs *chatService) View(ctx context.Context, s *session.State, queryID string) (*dto.QueryView, error) {
	fast, accurate := s.Polls.Snapshot(queryID)

	var detail *dto.QueryDetail
	switch {
	case fast != nil && fast.Query != nil:
		detail = fast.Query
	case accurate != nil && accurate.Query != nil:
		detail = accurate.Query
	}

	if fast == nil {
		d, err := cs.client.GetQuery(ctx, s, queryID)
		if err != nil {
			return nil, fmt.Errorf("get query: %w", err)
		}
		detail = d
		fast = stateFromDetail(d, dto.KindFast, cs.now())
		if accurate == nil && d.AccurateResponse != nil {
			accurate = stateFromDetail(d, dto.KindAccurate, cs.now())
		}
	}

	view := &dto.QueryView{Fast: fast, Accurate: accurate}
	if detail != nil {
		s.RememberQuery(queryID, detail.CreatedAt)
		s.Ratings.Seed(detail)
	}
	if createdAt, ok := s.QueryCreatedAt(queryID); ok {
		st := contextcache.Compute(createdAt, cs.now(), cs.cfg.CacheTTL).State(queryID)
		view.Cache = &st
	}
	view.Ratings = s.Ratings.States(queryID)
	return view, nil
}

// RetryFast polls the fast answer again after a timeout or a failure. The
// retried query takes a concurrency slot like a new submission.
func (cs *chatService) RetryFast(ctx context.Context, s *session.State, queryID string) (*dto.PollState, error) {
	admitted := true
	ok := s.Polls.RestartFast(queryID, func() bool {
		admitted = s.Active.TryAdd(queryID)
		return admitted
	})
	if !ok {
		if !admitted {
			cs.metrics.ObserveRejectedSubmission("too_many_active")
			return nil, session.ErrTooManyActiveQueries
		}
		return nil, gateway.ErrSessionExpired
	}
	cs.publishCounters(s)

	cs.logger.Info("ChatService", "Fast answer polled again", map[string]interface{}{
		"session_id": s.ID,
		"query_id":   queryID,
	})

	fast, _ := s.Polls.Snapshot(queryID)
	return fast, nil
}

// RequestAccurate starts, or restarts after a failure, the accurate answer
// flow. It is refused once the backend's cached context expired.
func (cs *chatService) RequestAccurate(ctx context.Context, s *session.State, queryID string) (*dto.PollState, error) {
	createdAt, ok := s.QueryCreatedAt(queryID)
	if !ok {
		d, err := cs.client.GetQuery(ctx, s, queryID)
		if err != nil {
			return nil, fmt.Errorf("get query: %w", err)
		}
		createdAt = d.CreatedAt
		s.RememberQuery(queryID, createdAt)
	}

	if err := contextcache.Guard(createdAt, cs.now(), cs.cfg.CacheTTL); err != nil {
		cs.metrics.ObserveRejectedSubmission("context_expired")
		return nil, err
	}

	if !s.Polls.AccurateRunning(queryID) {
		s.Polls.StartAccurate(queryID)
	}
	_, accurate := s.Polls.Snapshot(queryID)
	return accurate, nil
}

func (cs *chatService) Rate(ctx context.Context, s *session.State, queryID string, req *dto.RatingUpdate) (*dto.RatingState, error) {
	ctrl := s.Ratings.Get(queryID, req.ResponseKind)
	value, err := ctrl.Submit(ctx, req.Value)
	if err != nil {
		state := ctrl.State()
		return &state, err
	}

	cs.publisher.PublishAnalytics(pkgEvents.RatingChanged, map[string]interface{}{
		"query_id":      queryID,
		"response_type": string(req.ResponseKind),
		"rating_value":  string(value),
	})
	state := ctrl.State()
	return &state, nil
}

func (cs *chatService) RateLimit(s *session.State) dto.RateLimitState {
	return rateLimitState(s.RateLimit)
}

func (cs *chatService) ActiveQueries(s *session.State) dto.ActiveQueriesState {
	return activeQueriesState(s.Active)
}

func (cs *chatService) Examples(ctx context.Context) ([]dto.ExampleQuestion, error) {
	resp, err := cs.client.ExampleQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("example questions: %w", err)
	}
	return resp.Examples, nil
}

func activeQueriesState(a *session.ActiveQuerySet) dto.ActiveQueriesState {
	ids := a.Snapshot()
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, pendingPrefix) {
			visible = append(visible, id)
		}
	}
	return dto.ActiveQueriesState{
		Count:    len(ids),
		Max:      a.Max(),
		CanAdd:   len(ids) < a.Max(),
		QueryIds: visible,
	}
}

func rateLimitState(t *session.RateLimitTracker) dto.RateLimitState {
	used, limit, resetAt := t.Current()
	return dto.RateLimitState{Used: used, Limit: limit, ResetAt: resetAt, CanSubmit: used < limit}
}

// stateFromDetail renders a stored query as a finished (or still running
// elsewhere) poll state.
func stateFromDetail(d *dto.QueryDetail, kind dto.ResponseKind, now time.Time) *dto.PollState {
	slot := &d.FastResponse
	if kind == dto.KindAccurate {
		slot = d.AccurateResponse
	}
	state := &dto.PollState{
		QueryId:   d.QueryId,
		Kind:      kind,
		Query:     d,
		Slot:      slot,
		UpdatedAt: now,
	}
	switch slot.Status {
	case dto.StatusCompleted:
		state.Phase = string(polling.PhaseCompleted)
	case dto.StatusFailed:
		state.Phase = string(polling.PhaseFailed)
		state.ErrorCode = dto.ErrInternal
		state.Message = dto.MessageFor(dto.ErrInternal)
		state.Retryable = true
	default:
		state.Phase = string(polling.PhasePolling)
	}
	return state
}
