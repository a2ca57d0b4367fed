package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	token      string
	refreshed  string
	refreshErr error
	refreshes  int32
}

func (f *fakeCredentials) Token(ctx context.Context) (string, bool) {
	if f.token == "" {
		return "", false
	}
	return f.token, true
}

func (f *fakeCredentials) Refresh(ctx context.Context) error {
	atomic.AddInt32(&f.refreshes, 1)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = f.refreshed
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, logger.NewNopLogger(), metrics.NewCollectors()), srv
}

func writeEnvelope(w http.ResponseWriter, status int, code dto.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorEnvelope{Error: dto.ErrorBody{
		Code:      code,
		Message:   message,
		Timestamp: "2026-01-01T00:00:00Z",
		RequestId: "req-1",
	}})
}

func TestDo_AttachesBearerWhenAvailable(t *testing.T) {
	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Credentials: &fakeCredentials{token: "abc"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)

	_, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Credentials: &fakeCredentials{}}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDo_RefreshesOnceAndReplays(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeEnvelope(w, http.StatusUnauthorized, dto.ErrUnauthorized, "expired")
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	creds := &fakeCredentials{token: "stale", refreshed: "fresh"}
	var out dto.HealthResponse
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/health", Credentials: creds}, &out)

	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, int32(1), creds.refreshes)
	assert.Equal(t, int32(2), calls)
}

func TestDo_SessionExpired(t *testing.T) {
	tests := []struct {
		name       string
		refreshErr error
		wantCalls  int32
	}{
		{name: "refresh fails", refreshErr: errors.New("invalid refresh token"), wantCalls: 1},
		{name: "second 401", refreshErr: nil, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				writeEnvelope(w, http.StatusUnauthorized, dto.ErrUnauthorized, "nope")
			})

			creds := &fakeCredentials{token: "a", refreshed: "b", refreshErr: tt.refreshErr}
			_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Credentials: creds}, nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSessionExpired)
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
			assert.Equal(t, int32(1), creds.refreshes)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, dto.ErrSessionExpired, ErrorCodeOf(err))
		})
	}
}

func TestDo_UnauthorizedWithoutCredentialsIsPlainError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, dto.ErrUnauthorized, "login")
	})

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, dto.ErrUnauthorized, ErrorCodeOf(err))
}

func TestDo_ParsesErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusServiceUnavailable, dto.ErrLLMUnavailable, "model down")
	})

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, dto.ErrLLMUnavailable, apiErr.Code)
	assert.Equal(t, "model down", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.True(t, apiErr.Retryable())
}

func TestDo_MalformedErrorBodyMapsByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   dto.ErrorCode
	}{
		{http.StatusBadRequest, dto.ErrValidation},
		{http.StatusUnprocessableEntity, dto.ErrValidation},
		{http.StatusForbidden, dto.ErrForbidden},
		{http.StatusNotFound, dto.ErrNotFound},
		{http.StatusConflict, dto.ErrConflict},
		{http.StatusTooManyRequests, dto.ErrRateLimitExceeded},
		{http.StatusInternalServerError, dto.ErrInternal},
		{http.StatusBadGateway, dto.ErrInternal},
		{http.StatusServiceUnavailable, dto.ErrServiceUnavailable},
		{http.StatusGatewayTimeout, dto.ErrGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Request-ID", "hdr-7")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("<html>proxy error</html>"))
			})

			_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Code)
			assert.Equal(t, "hdr-7", apiErr.RequestID)
		})
	}
}

func TestDo_NetworkFailureIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, logger.NewNopLogger(), nil)
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, dto.ErrServiceUnavailable, apiErr.Code)
	assert.True(t, apiErr.IsNetwork())
}

func TestDo_CancellationIsNotMapped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Do(ctx, Request{Method: http.MethodGet, Path: "/slow"}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
}

func TestDo_RateLimitHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "10")
		w.Header().Set("X-RateLimit-Remaining", "7")
		w.Header().Set("X-RateLimit-Reset", "1767225600")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"query_id":"q1","status":"pending","fast_response":{"status":"pending","estimated_time_seconds":10}}`))
	})

	resp, snapshot, err := client.SubmitQuery(context.Background(), nil, "Jakie są prawa konsumenta?")

	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "q1", resp.QueryId)
	assert.Equal(t, 3, snapshot.Used)
	assert.Equal(t, 10, snapshot.Limit)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), snapshot.ResetAt)

	// not requested: no snapshot even when headers are present
	snapshot, err = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestParseRateLimit_MissingOrInvalid(t *testing.T) {
	h := http.Header{}
	assert.Nil(t, parseRateLimit(h))

	h.Set("X-RateLimit-Limit", "10")
	h.Set("X-RateLimit-Remaining", "abc")
	h.Set("X-RateLimit-Reset", "1")
	assert.Nil(t, parseRateLimit(h))
}

func TestRequestAccurate_ConflictIsBenign(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/queries/q1/accurate-response", r.URL.Path)
		writeEnvelope(w, http.StatusConflict, dto.ErrConflict, "already running")
	})

	start, err := client.RequestAccurate(context.Background(), nil, "q1")

	require.NoError(t, err)
	assert.True(t, start.AlreadyStarted)
}

func TestConflictElsewhereIsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, dto.ErrConflict, "conflict")
	})

	_, err := client.SubmitRating(context.Background(), nil, "q1", dto.RatingUpdate{ResponseKind: dto.KindFast, Value: dto.RatingUp})

	assert.Equal(t, dto.ErrConflict, ErrorCodeOf(err))
}

func TestListQueries_ClampsParams(t *testing.T) {
	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"queries":[],"pagination":{"page":1,"per_page":100,"total_pages":0,"total_count":0}}`))
	})

	_, err := client.ListQueries(context.Background(), nil, ListParams{Page: -3, PerPage: 500, Order: "sideways"})

	require.NoError(t, err)
	assert.Equal(t, "order=desc&page=1&per_page=100", got)
}

func TestGetQuery_NormalizesIncompleteSlots(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query_id":"q1","status":"processing","fast_response":{"status":"processing","content":"partial","sources":[{"act_title":"KC"}]},"accurate_response":null}`))
	})

	detail, err := client.GetQuery(context.Background(), nil, "q1")

	require.NoError(t, err)
	assert.Empty(t, detail.FastResponse.Content)
	assert.Nil(t, detail.FastResponse.Sources)
	assert.Nil(t, detail.AccurateResponse)
}
