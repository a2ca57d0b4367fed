package polling

import (
	"context"
	"sync"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
)

type fakeBackend struct {
	mu           sync.Mutex
	getCalls     int
	requestCalls int
	get          func(ctx context.Context, call int) (*dto.QueryDetail, error)
	request      func(ctx context.Context, call int) (*gateway.AccurateStart, error)
}

func (f *fakeBackend) GetQuery(ctx context.Context, id string) (*dto.QueryDetail, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	f.mu.Unlock()
	return f.get(ctx, call)
}

func (f *fakeBackend) RequestAccurate(ctx context.Context, id string) (*gateway.AccurateStart, error) {
	f.mu.Lock()
	f.requestCalls++
	call := f.requestCalls
	f.mu.Unlock()
	if f.request == nil {
		return &gateway.AccurateStart{Response: &dto.AccurateSubmitResponse{QueryId: id, AccurateResponse: dto.ResponseSlot{Status: dto.StatusProcessing}}}, nil
	}
	return f.request(ctx, call)
}

func (f *fakeBackend) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func pendingQuery() *dto.QueryDetail {
	return &dto.QueryDetail{
		QueryId:      "q1",
		Status:       dto.StatusProcessing,
		FastResponse: dto.ResponseSlot{Status: dto.StatusProcessing},
	}
}

func completedQuery() *dto.QueryDetail {
	return &dto.QueryDetail{
		QueryId: "q1",
		Status:  dto.StatusCompleted,
		FastResponse: dto.ResponseSlot{
			Status:    dto.StatusCompleted,
			Content:   "Konsument może odstąpić od umowy w terminie 14 dni.",
			ModelName: "bielik",
			Sources:   []dto.SourceReference{{ActTitle: "Ustawa o prawach konsumenta", Article: "art. 27"}},
		},
	}
}

func withAccurate(status dto.ProcessingStatus) *dto.QueryDetail {
	q := completedQuery()
	q.AccurateResponse = &dto.ResponseSlot{Status: status}
	if status == dto.StatusCompleted {
		q.AccurateResponse.Content = "Szczegółowa odpowiedź"
	}
	return q
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (f *fakeBackend) RequestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestCalls
}
