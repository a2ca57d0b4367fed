package polling

import (
	"context"
	"sync"
	"testing"
	"time"

	"prawnik-web/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTestConfig() FastConfig {
	return FastConfig{InitialInterval: ms(5), MaxInterval: ms(10), Multiplier: 1.5, Timeout: ms(150)}
}

type recorder struct {
	mu     sync.Mutex
	states []dto.PollState
	final  *dto.PollState
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) onState(s dto.PollState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onDone(s dto.PollState) {
	r.mu.Lock()
	r.final = &s
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) Final() *dto.PollState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final
}

func TestRunner_FastCompletes(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		if call < 3 {
			return pendingQuery(), nil
		}
		return completedQuery(), nil
	}}
	rec := newRecorder()
	runner := NewRunner(NewFastPoller("q1", backend, fastTestConfig()), nil, rec.onState, rec.onDone)

	runner.Run(context.Background())

	require.NotNil(t, rec.Final())
	assert.Equal(t, string(PhaseCompleted), rec.Final().Phase)
	assert.Equal(t, 3, backend.GetCalls())
	assert.NotEmpty(t, rec.states)
}

func TestRunner_FastTimesOutOnWallClock(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return pendingQuery(), nil
	}}
	rec := newRecorder()
	runner := NewRunner(NewFastPoller("q1", backend, fastTestConfig()), nil, rec.onState, rec.onDone)

	start := time.Now()
	runner.Run(context.Background())

	assert.GreaterOrEqual(t, time.Since(start), ms(150))
	assert.Equal(t, string(PhaseTimedOut), rec.Final().Phase)
}

func TestRunner_TimeoutInterruptsInFlightFetch(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := newRecorder()
	cfg := AccurateConfig{Interval: ms(10), Timeout: ms(80)}
	runner := NewRunner(NewAccuratePoller("q1", backend, cfg), nil, rec.onState, rec.onDone)

	start := time.Now()
	runner.Run(context.Background())

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, ms(80))
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, string(PhaseTimedOut), rec.Final().Phase)
	assert.Equal(t, 1, backend.GetCalls())
}

func TestRunner_CancelStopsFetchesAndCallbacks(t *testing.T) {
	backend := &fakeBackend{get: func(ctx context.Context, call int) (*dto.QueryDetail, error) {
		return pendingQuery(), nil
	}}
	rec := newRecorder()
	cfg := FastConfig{InitialInterval: ms(20), MaxInterval: ms(20), Multiplier: 1.5, Timeout: 10 * time.Second}
	runner := NewRunner(NewFastPoller("q1", backend, cfg), nil, rec.onState, rec.onDone)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(finished)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-finished

	calls := backend.GetCalls()
	rec.mu.Lock()
	published := len(rec.states)
	rec.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, backend.GetCalls())
	rec.mu.Lock()
	assert.Equal(t, published, len(rec.states))
	rec.mu.Unlock()
	assert.Nil(t, rec.Final())
}
