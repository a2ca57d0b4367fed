package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 4 << 20

// Credentials supplies the bearer token of the current session.
type Credentials interface {
	// Token returns the access token, or false when the session has none.
	Token(ctx context.Context) (string, bool)
	// Refresh obtains a new access token from the session provider.
	Refresh(ctx context.Context) error
}

type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           interface{}
	Credentials    Credentials
	TrackRateLimit bool
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.ILogger
	metrics    *metrics.Collectors
	tracer     trace.Tracer
}

func NewClient(baseURL string, timeout time.Duration, log logger.ILogger, m *metrics.Collectors) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		metrics:    m,
		tracer:     otel.Tracer("prawnik-web/gateway"),
	}
}

// Do issues req and decodes a successful JSON body into out (which may be
// nil). A 401 triggers exactly one credential refresh and one replay.
// The returned snapshot is non-nil only when TrackRateLimit is set and the
// response carried all rate-limit headers.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*RateLimitSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "gateway "+req.Method+" "+req.Path)
	defer span.End()

	resp, err := c.send(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && req.Credentials != nil {
		first := parseError(resp.status, resp.body, resp.header)
		if refreshErr := req.Credentials.Refresh(ctx); refreshErr != nil {
			c.logger.Warn("Gateway", "Credential refresh failed", map[string]interface{}{
				"path":  req.Path,
				"error": refreshErr.Error(),
			})
			err := fmt.Errorf("%w: %w", ErrSessionExpired, first)
			recordSpanError(span, err)
			return nil, err
		}

		resp, err = c.send(ctx, req)
		if err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			err := fmt.Errorf("%w: %w", ErrSessionExpired, parseError(resp.status, resp.body, resp.header))
			recordSpanError(span, err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.status))

	// a 429 carries the counters too
	var snapshot *RateLimitSnapshot
	if req.TrackRateLimit {
		snapshot = parseRateLimit(resp.header)
	}

	if resp.status >= 400 {
		apiErr := parseError(resp.status, resp.body, resp.header)
		if apiErr.Code == dto.ErrInternal {
			c.logger.Error("Gateway", "Backend internal error", map[string]interface{}{
				"method":     req.Method,
				"path":       req.Path,
				"status":     apiErr.Status,
				"request_id": apiErr.RequestID,
				"message":    apiErr.Message,
			})
		}
		recordSpanError(span, apiErr)
		return snapshot, apiErr
	}

	if out != nil && resp.status != http.StatusNoContent && len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return snapshot, fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
		}
	}
	return snapshot, nil
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) send(ctx context.Context, req Request) (*rawResponse, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Credentials != nil {
		if token, ok := req.Credentials.Token(ctx); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Cancellation is the caller's decision, not a connectivity problem.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.metrics.ObserveGatewayRequest(req.Method, 0)
		c.logger.Warn("Gateway", "Backend unreachable", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
			"error":  err.Error(),
		})
		return nil, &APIError{
			Status:  0,
			Code:    dto.ErrServiceUnavailable,
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	c.metrics.ObserveGatewayRequest(req.Method, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &APIError{Status: 0, Code: dto.ErrServiceUnavailable, Message: fmt.Sprintf("read response: %v", err)}
	}

	return &rawResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func recordSpanError(span trace.Span, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
