package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
)

type AccurateConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func DefaultAccurateConfig() AccurateConfig {
	return AccurateConfig{
		Interval: 5000 * time.Millisecond,
		Timeout:  240000 * time.Millisecond,
	}
}

// AccuratePoller asks for the accurate answer and then polls at a fixed
// interval. The timeout runs from the moment polling starts. Any failed
// fetch is terminal; a retry is a new poller.
type AccuratePoller struct {
	mu             sync.Mutex
	queryID        string
	cfg            AccurateConfig
	backend        Backend
	phase          Phase
	pollStart      time.Time
	updated        time.Time
	alreadyStarted bool
	query          *dto.QueryDetail
	slot           *dto.ResponseSlot
	err            error
	canceled       bool
}

func NewAccuratePoller(queryID string, backend Backend, cfg AccurateConfig) *AccuratePoller {
	return &AccuratePoller{
		queryID: queryID,
		cfg:     cfg,
		backend: backend,
		phase:   PhaseIdle,
	}
}

func (p *AccuratePoller) Begin(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == PhaseIdle {
		p.phase = PhaseRequesting
		p.updated = now
	}
}

func (p *AccuratePoller) Tick(ctx context.Context, now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	if p.canceled || p.phase.Terminal() {
		p.mu.Unlock()
		return 0, true
	}
	if p.phase == PhaseIdle {
		p.phase = PhaseRequesting
	}
	phase := p.phase
	p.mu.Unlock()

	if phase == PhaseRequesting {
		return p.request(ctx, now)
	}
	return p.poll(ctx, now)
}

func (p *AccuratePoller) request(ctx context.Context, now time.Time) (time.Duration, bool) {
	start, err := p.backend.RequestAccurate(ctx, p.queryID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.canceled || errors.Is(err, context.Canceled) {
		p.canceled = true
		return 0, true
	}
	if err != nil {
		p.finishLocked(PhaseFailed, err, now)
		return 0, true
	}

	p.alreadyStarted = start.AlreadyStarted
	if start.Response != nil {
		slot := start.Response.AccurateResponse
		p.slot = &slot
	}
	p.phase = PhasePolling
	p.pollStart = now
	p.updated = now
	return 0, false
}

func (p *AccuratePoller) poll(ctx context.Context, now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	if p.pollStart.IsZero() {
		p.pollStart = now
	}
	if now.Sub(p.pollStart) >= p.cfg.Timeout {
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
		} else {
			p.finishLocked(PhaseFailed, err, now)
		}
		return 0, true
	}

	p.query = detail
	p.updated = now
	if detail.AccurateResponse != nil {
		slot := *detail.AccurateResponse
		p.slot = &slot
		switch slot.Status {
		case dto.StatusCompleted:
			p.finishLocked(PhaseCompleted, nil, now)
			return 0, true
		case dto.StatusFailed:
			p.finishLocked(PhaseFailed, ErrGenerationFailed, now)
			return 0, true
		}
	}
	return p.cfg.Interval, false
}

func (p *AccuratePoller) Expire(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canceled || p.phase.Terminal() {
		return
	}
	p.expireLocked(now)
}

func (p *AccuratePoller) expireLocked(now time.Time) {
	p.finishLocked(PhaseTimedOut, gateway.NewTimeoutError("accurate response generation timeout"), now)
}

func (p *AccuratePoller) finishLocked(phase Phase, err error, now time.Time) {
	p.phase = phase
	p.err = err
	p.updated = now
}

func (p *AccuratePoller) Cancel() {
	p.mu.Lock()
	p.canceled = true
	p.mu.Unlock()
}

func (p *AccuratePoller) Deadline() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollStart.IsZero() {
		return time.Time{}, false
	}
	return p.pollStart.Add(p.cfg.Timeout), true
}

// AlreadyStarted reports whether the backend answered the start request
// with a conflict.
func (p *AccuratePoller) AlreadyStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alreadyStarted
}

func (p *AccuratePoller) Snapshot() dto.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := dto.PollState{
		QueryId:   p.queryID,
		Kind:      dto.KindAccurate,
		Phase:     string(p.phase),
		UpdatedAt: p.updated,
	}
	if p.query != nil {
		q := *p.query
		state.Query = &q
	}
	if p.slot != nil {
		slot := *p.slot
		state.Slot = &slot
	}
	snapshotError(&state, p.err)
	return state
}
