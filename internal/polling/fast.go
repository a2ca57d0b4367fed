package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"

	"github.com/cenkalti/backoff/v5"
)

type FastConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Timeout         time.Duration
}

func DefaultFastConfig() FastConfig {
	return FastConfig{
		InitialInterval: 1000 * time.Millisecond,
		MaxInterval:     2000 * time.Millisecond,
		Multiplier:      1.5,
		Timeout:         15000 * time.Millisecond,
	}
}

// FastPoller follows the fast answer of one query: idle, polling, then
// completed, failed or timed-out. Intervals grow 1000, 1500, 2000, 2000 ms
// with the default config.
type FastPoller struct {
	mu       sync.Mutex
	queryID  string
	cfg      FastConfig
	backend  Backend
	backoff  *backoff.ExponentialBackOff
	phase    Phase
	start    time.Time
	updated  time.Time
	query    *dto.QueryDetail
	err      error
	canceled bool
}

func NewFastPoller(queryID string, backend Backend, cfg FastConfig) *FastPoller {
	return &FastPoller{
		queryID: queryID,
		cfg:     cfg,
		backend: backend,
		backoff: &backoff.ExponentialBackOff{
			InitialInterval:     cfg.InitialInterval,
			RandomizationFactor: 0,
			Multiplier:          cfg.Multiplier,
			MaxInterval:         cfg.MaxInterval,
		},
		phase: PhaseIdle,
	}
}

func (p *FastPoller) Begin(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beginLocked(now)
}

func (p *FastPoller) beginLocked(now time.Time) {
	if p.phase != PhaseIdle {
		return
	}
	p.phase = PhasePolling
	p.start = now
	p.updated = now
	p.backoff.Reset()
}

func (p *FastPoller) Tick(ctx context.Context, now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	if p.canceled || p.phase.Terminal() {
		p.mu.Unlock()
		return 0, true
	}
	p.beginLocked(now)
	if now.Sub(p.start) >= p.cfg.Timeout {
		p.expireLocked(now)
		p.mu.Unlock()
		return 0, true
	}
	p.mu.Unlock()

	detail, err := p.backend.GetQuery(ctx, p.queryID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.canceled || errors.Is(err, context.Canceled) {
		p.canceled = true
		return 0, true
	}
	if p.phase.Terminal() {
		return 0, true
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.expireLocked(now)
			return 0, true
		}
		if isRetryable(err) {
			return p.backoff.NextBackOff(), false
		}
		p.finishLocked(PhaseFailed, err, now)
		return 0, true
	}

	p.query = detail
	p.updated = now

	status := detail.FastResponse.Status
	if !status.Terminal() {
		status = detail.Status
	}
	switch status {
	case dto.StatusCompleted:
		p.finishLocked(PhaseCompleted, nil, now)
		return 0, true
	case dto.StatusFailed:
		p.finishLocked(PhaseFailed, ErrGenerationFailed, now)
		return 0, true
	}

	return p.backoff.NextBackOff(), false
}

// Expire forces the timed-out outcome, whatever fetch may be in flight.
func (p *FastPoller) Expire(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canceled || p.phase.Terminal() {
		return
	}
	p.expireLocked(now)
}

func (p *FastPoller) expireLocked(now time.Time) {
	p.finishLocked(PhaseTimedOut, gateway.NewTimeoutError("fast response generation timeout"), now)
}

func (p *FastPoller) finishLocked(phase Phase, err error, now time.Time) {
	p.phase = phase
	p.err = err
	p.updated = now
}

func (p *FastPoller) Cancel() {
	p.mu.Lock()
	p.canceled = true
	p.mu.Unlock()
}

func (p *FastPoller) Deadline() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == PhaseIdle {
		return time.Time{}, false
	}
	return p.start.Add(p.cfg.Timeout), true
}

func (p *FastPoller) Snapshot() dto.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := dto.PollState{
		QueryId:   p.queryID,
		Kind:      dto.KindFast,
		Phase:     string(p.phase),
		UpdatedAt: p.updated,
	}
	if p.query != nil {
		q := *p.query
		state.Query = &q
		slot := q.FastResponse
		state.Slot = &slot
	}
	snapshotError(&state, p.err)
	return state
}
