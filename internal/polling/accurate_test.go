package polling

import (
	"context"
	"net/http"
	"testing"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuratePoller_ConflictIsBenign(t *testing.T) {
	backend := &fakeBackend{
		request: func(ctx context.Context, call int) (*gateway.AccurateStart, error) {
			return &gateway.AccurateStart{AlreadyStarted: true}, nil
		},
		get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
			return withAccurate(dto.StatusProcessing), nil
		},
	}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)
	assert.Equal(t, string(PhaseRequesting), p.Snapshot().Phase)

	next, done := p.Tick(context.Background(), t0)

	assert.False(t, done)
	assert.Equal(t, time.Duration(0), next)
	assert.True(t, p.AlreadyStarted())
	assert.Equal(t, string(PhasePolling), p.Snapshot().Phase)
	assert.Empty(t, p.Snapshot().ErrorCode)
}

func TestAccuratePoller_FixedIntervalAndTimeout(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return withAccurate(dto.StatusProcessing), nil
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)

	_, done := p.Tick(context.Background(), t0)
	require.False(t, done)

	pollStart := t0
	now := pollStart
	var intervals []time.Duration
	for i := 0; i < 100; i++ {
		next, done := p.Tick(context.Background(), now)
		if done {
			break
		}
		intervals = append(intervals, next)
		now = now.Add(next)
	}

	for _, d := range intervals {
		assert.Equal(t, ms(5000), d)
	}
	assert.Equal(t, ms(240000), now.Sub(pollStart))
	assert.Equal(t, 48, backend.GetCalls())

	state := p.Snapshot()
	assert.Equal(t, string(PhaseTimedOut), state.Phase)
	assert.Equal(t, dto.ErrGenerationTimeout, state.ErrorCode)
	assert.True(t, state.Retryable)
}

func TestAccuratePoller_TimeoutBoundary(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return withAccurate(dto.StatusProcessing), nil
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)
	p.Tick(context.Background(), t0)
	p.Tick(context.Background(), t0)

	deadline, ok := p.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(ms(240000)), deadline)

	_, done := p.Tick(context.Background(), t0.Add(ms(239999)))
	assert.False(t, done)
	_, done = p.Tick(context.Background(), t0.Add(ms(240000)))
	assert.True(t, done)
	assert.Equal(t, string(PhaseTimedOut), p.Snapshot().Phase)
}

func TestAccuratePoller_Completes(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		if call < 3 {
			return withAccurate(dto.StatusProcessing), nil
		}
		return withAccurate(dto.StatusCompleted), nil
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)

	now := t0
	for {
		next, done := p.Tick(context.Background(), now)
		if done {
			break
		}
		now = now.Add(next)
	}

	state := p.Snapshot()
	assert.Equal(t, string(PhaseCompleted), state.Phase)
	require.NotNil(t, state.Slot)
	assert.Equal(t, "Szczegółowa odpowiedź", state.Slot.Content)
	assert.Equal(t, ms(10000), now.Sub(t0))
}

func TestAccuratePoller_AnyFetchErrorIsTerminal(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return nil, &gateway.APIError{Status: http.StatusServiceUnavailable, Code: dto.ErrServiceUnavailable}
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)
	p.Tick(context.Background(), t0)

	_, done := p.Tick(context.Background(), t0)

	assert.True(t, done)
	assert.Equal(t, 1, backend.GetCalls())
	state := p.Snapshot()
	assert.Equal(t, string(PhaseFailed), state.Phase)
	assert.Equal(t, dto.ErrServiceUnavailable, state.ErrorCode)
	assert.True(t, state.Retryable)
}

func TestAccuratePoller_ServerReportedFailure(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return withAccurate(dto.StatusFailed), nil
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)
	p.Tick(context.Background(), t0)

	_, done := p.Tick(context.Background(), t0)

	assert.True(t, done)
	assert.Equal(t, string(PhaseFailed), p.Snapshot().Phase)
	assert.True(t, p.Snapshot().Retryable)
}

func TestAccuratePoller_RequestFailure(t *testing.T) {
	backend := &fakeBackend{request: func(ctx context.Context, call int) (*gateway.AccurateStart, error) {
		return nil, &gateway.APIError{Status: http.StatusGone, Code: dto.ErrGone}
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)

	_, done := p.Tick(context.Background(), t0)

	assert.True(t, done)
	assert.Equal(t, string(PhaseFailed), p.Snapshot().Phase)
	assert.Equal(t, dto.ErrGone, p.Snapshot().ErrorCode)
	assert.False(t, p.Snapshot().Retryable)
}

func TestAccuratePoller_CanceledRequestLeavesState(t *testing.T) {
	backend := &fakeBackend{request: func(ctx context.Context, call int) (*gateway.AccurateStart, error) {
		return nil, context.Canceled
	}}
	p := NewAccuratePoller("q1", backend, DefaultAccurateConfig())
	p.Begin(t0)

	_, done := p.Tick(context.Background(), t0)

	assert.True(t, done)
	assert.Equal(t, string(PhaseRequesting), p.Snapshot().Phase)
	assert.Empty(t, p.Snapshot().ErrorCode)
}
