package memory

import (
	"time"

	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/repository/contract"
	"prawnik-web/internal/session"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ contract.ISessionRepository = (*SessionRepository)(nil)

// NewSessionRepository keeps sessions for ttl after their last use. Evicted
// or deleted sessions are closed so their pollers stop.
func NewSessionRepository(ttl time.Duration, log logger.ILogger) *SessionRepository {
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, v interface{}) {
		state, ok := v.(*session.State)
		if !ok {
			return
		}
		state.Close()
		if log != nil {
			log.Debug("SessionRepository", "Session closed", map[string]interface{}{"session_id": id})
		}
	})
	return &SessionRepository{cache: c, ttl: ttl}
}

func (r *SessionRepository) Save(state *session.State) {
	r.cache.Set(state.ID, state, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*session.State, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	state := x.(*session.State)
	state.Touch()
	// sliding expiration; Set does not fire OnEvicted
	r.cache.Set(sessionID, state, cache.DefaultExpiration)
	return state, true
}

func (r *SessionRepository) Peek(sessionID string) (*session.State, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*session.State), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
