package polling

import (
	"context"
	"time"

	"prawnik-web/internal/dto"
)

// Runner drives one Poller with real timers. Each fetch runs under a
// context bounded by the poller's deadline, so a slow request cannot
// outlive the timeout.
type Runner struct {
	poller  Poller
	now     func() time.Time
	onState func(dto.PollState)
	onDone  func(dto.PollState)
}

func NewRunner(p Poller, now func() time.Time, onState, onDone func(dto.PollState)) *Runner {
	if now == nil {
		now = time.Now
	}
	if onState == nil {
		onState = func(dto.PollState) {}
	}
	if onDone == nil {
		onDone = func(dto.PollState) {}
	}
	return &Runner{poller: p, now: now, onState: onState, onDone: onDone}
}

// Run blocks until the poller is done or ctx is canceled. After
// cancellation neither callback is invoked again.
func (r *Runner) Run(ctx context.Context) {
	r.poller.Begin(r.now())
	r.onState(r.poller.Snapshot())

	for {
		fetchCtx, cancelFetch := r.fetchContext(ctx)
		next, done := r.poller.Tick(fetchCtx, r.now())
		cancelFetch()

		if ctx.Err() != nil {
			r.poller.Cancel()
			return
		}

		state := r.poller.Snapshot()
		if done {
			r.onDone(state)
			return
		}
		r.onState(state)

		if !r.wait(ctx, next) {
			r.poller.Cancel()
			return
		}
	}
}

func (r *Runner) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := r.poller.Deadline(); ok {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithCancel(ctx)
}

// wait sleeps for next, cut short at the poller deadline so the timeout is
// observed on time.
func (r *Runner) wait(ctx context.Context, next time.Duration) bool {
	if deadline, ok := r.poller.Deadline(); ok {
		if remaining := deadline.Sub(r.now()); remaining < next {
			next = remaining
		}
	}
	if next < 0 {
		next = 0
	}

	timer := time.NewTimer(next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
