package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/history"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/polling"
	"prawnik-web/internal/rating"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authprovider.Session, error)
}

type Options struct {
	Client           *gateway.Client
	Refresher        Refresher
	Sink             polling.Sink
	Fast             polling.FastConfig
	Accurate         polling.AccurateConfig
	MaxActive        int
	RateLimitDefault int
	Metrics          *metrics.Collectors
	Logger           logger.ILogger
	Now              func() time.Time
}

// State is everything the server keeps for one signed-in browser session.
type State struct {
	ID        string
	CreatedAt time.Time

	Active    *ActiveQuerySet
	RateLimit *RateLimitTracker
	Ratings   *rating.Registry
	History   *history.Controller
	Polls     *polling.Manager

	refresher Refresher
	logger    logger.ILogger
	now       func() time.Time
	group     singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	token     *oauth2.Token
	user      dto.UserInfo
	lastSeen  time.Time
	expired   bool
	createdAt map[string]string
	closeOnce sync.Once
}

var _ gateway.Credentials = (*State)(nil)

func New(auth *authprovider.Session, opts Options) *State {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = MaxActiveQueries
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	now := opts.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &State{
		ID:        uuid.NewString(),
		CreatedAt: now,
		refresher: opts.Refresher,
		logger:    opts.Logger,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		token:     auth.Token,
		user:      auth.User,
		lastSeen:  now,
		createdAt: make(map[string]string),
	}

	s.Active = NewActiveQuerySet(opts.MaxActive, opts.Metrics)
	s.RateLimit = NewRateLimitTracker(opts.RateLimitDefault)
	s.Ratings = rating.NewRegistry(rating.NewGatewaySubmitter(opts.Client, s))
	s.History = history.NewController(history.NewGatewayLister(opts.Client, s))
	s.Polls = polling.NewManager(polling.ManagerConfig{
		SessionID: s.ID,
		Backend:   polling.NewGatewayBackend(opts.Client, s),
		Fast:      opts.Fast,
		Accurate:  opts.Accurate,
		Admission: s.Active,
		Sink:      opts.Sink,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
		Now:       opts.Now,
	})
	return s
}

// Token returns the current access token. An expired token is refreshed
// first; if that fails the stale token is still returned and the backend's
// 401 drives the regular refresh path.
func (s *State) Token(ctx context.Context) (string, bool) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()

	if tok == nil || tok.AccessToken == "" {
		return "", false
	}
	if !tok.Valid() && tok.RefreshToken != "" {
		if err := s.Refresh(ctx); err == nil {
			s.mu.RLock()
			tok = s.token
			s.mu.RUnlock()
		}
	}
	return tok.AccessToken, true
}

// Refresh rotates the credential pair. Concurrent callers share a single
// provider round trip.
func (s *State) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		s.mu.RLock()
		var refreshToken string
		if s.token != nil {
			refreshToken = s.token.RefreshToken
		}
		s.mu.RUnlock()

		if s.refresher == nil || refreshToken == "" {
			s.markExpired()
			return nil, authprovider.ErrInvalidToken
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		fresh, err := s.refresher.Refresh(rctx, refreshToken)
		if err != nil {
			s.markExpired()
			s.logger.Info("Session", "Token refresh failed", map[string]interface{}{
				"session_id": s.ID,
				"error":      err,
			})
			return nil, fmt.Errorf("refresh session: %w", err)
		}
		s.Adopt(fresh)
		return nil, nil
	})
	return err
}

// Adopt replaces the credentials, e.g. after re-authentication.
func (s *State) Adopt(auth *authprovider.Session) {
	if auth == nil || auth.Token == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = auth.Token
	if auth.User.Id != "" {
		s.user = auth.User
	}
	s.expired = false
}

func (s *State) markExpired() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

// Expired reports whether a refresh has failed; the session must be dropped.
func (s *State) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expired
}

func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

func (s *State) User() dto.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *State) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *State) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// Context is canceled when the session is closed. Background work bound to
// the session (cache timers) runs under it.
func (s *State) Context() context.Context {
	return s.ctx
}

// RememberQuery records the creation timestamp the context-cache timer is
// computed from.
func (s *State) RememberQuery(queryID, createdAt string) {
	if createdAt == "" {
		return
	}
	s.mu.Lock()
	s.createdAt[queryID] = createdAt
	s.mu.Unlock()
}

func (s *State) QueryCreatedAt(queryID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.createdAt[queryID]
	return v, ok
}

func (s *State) ForgetQuery(queryID string) {
	s.Polls.Cancel(queryID)
	s.Ratings.Forget(queryID)
	s.mu.Lock()
	delete(s.createdAt, queryID)
	s.mu.Unlock()
}

// Close stops every poller and timer of the session. Safe to call twice.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.Polls.CancelAll()
		s.Active.Clear()
	})
}
