package polling

import (
	"context"
	"errors"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhasePolling    Phase = "polling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseTimedOut   Phase = "timed-out"
)

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseTimedOut
}

// ErrGenerationFailed marks a slot the backend itself reported as failed.
var ErrGenerationFailed = errors.New("generation failed")

// Backend is the part of the API a poller needs, already bound to the
// credentials of one session.
type Backend interface {
	GetQuery(ctx context.Context, id string) (*dto.QueryDetail, error)
	RequestAccurate(ctx context.Context, id string) (*gateway.AccurateStart, error)
}

type gatewayBackend struct {
	client *gateway.Client
	creds  gateway.Credentials
}

func NewGatewayBackend(client *gateway.Client, creds gateway.Credentials) Backend {
	return &gatewayBackend{client: client, creds: creds}
}

func (b *gatewayBackend) GetQuery(ctx context.Context, id string) (*dto.QueryDetail, error) {
	return b.client.GetQuery(ctx, b.creds, id)
}

func (b *gatewayBackend) RequestAccurate(ctx context.Context, id string) (*gateway.AccurateStart, error) {
	return b.client.RequestAccurate(ctx, b.creds, id)
}

// Poller is a state machine driven by explicit instants. Tick performs at
// most one backend call and returns the delay before the next Tick, or
// done once the poller reached a terminal phase or was canceled.
type Poller interface {
	Begin(now time.Time)
	Tick(ctx context.Context, now time.Time) (next time.Duration, done bool)
	Expire(now time.Time)
	Cancel()
	// Deadline is the wall-clock instant of the timeout, once known.
	Deadline() (time.Time, bool)
	Snapshot() dto.PollState
}

func snapshotError(state *dto.PollState, err error) {
	if err == nil {
		return
	}
	state.ErrorCode = gateway.ErrorCodeOf(err)
	state.Message = dto.MessageFor(state.ErrorCode)
	// timeouts and transient backend failures can be retried; a missing,
	// forbidden or expired query cannot
	state.Retryable = errors.Is(err, ErrGenerationFailed) || isRetryable(err)
}

func isRetryable(err error) bool {
	if errors.Is(err, gateway.ErrSessionExpired) {
		return false
	}
	apiErr, ok := gateway.AsAPIError(err)
	return ok && apiErr.Retryable()
}
