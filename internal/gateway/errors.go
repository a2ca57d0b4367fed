package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"prawnik-web/internal/dto"
)

// ErrSessionExpired is returned when a 401 could not be cured by one
// credential refresh. The caller must treat the session as gone.
var ErrSessionExpired = errors.New("session expired")

// APIError is a backend error response, or a connectivity failure when
// Status is 0.
type APIError struct {
	Status    int
	Code      dto.ErrorCode
	Message   string
	Details   map[string]interface{}
	RequestID string
	Timestamp string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Message)
	}
	return fmt.Sprintf("backend error %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether repeating the same request later may succeed.
func (e *APIError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsNetwork reports a failure where no response was received.
func (e *APIError) IsNetwork() bool {
	return e.Status == 0
}

// AsAPIError unwraps err into an *APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrorCodeOf classifies any error returned by this package.
func ErrorCodeOf(err error) dto.ErrorCode {
	if errors.Is(err, ErrSessionExpired) {
		return dto.ErrSessionExpired
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Code
	}
	return dto.ErrInternal
}

// NewTimeoutError is the local error of a poller whose wall-clock budget ran out.
func NewTimeoutError(message string) *APIError {
	return &APIError{
		Status:  http.StatusGatewayTimeout,
		Code:    dto.ErrGenerationTimeout,
		Message: message,
	}
}

func codeForStatus(status int) dto.ErrorCode {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return dto.ErrValidation
	case status == http.StatusUnauthorized:
		return dto.ErrUnauthorized
	case status == http.StatusForbidden:
		return dto.ErrForbidden
	case status == http.StatusNotFound:
		return dto.ErrNotFound
	case status == http.StatusConflict:
		return dto.ErrConflict
	case status == http.StatusGone:
		return dto.ErrGone
	case status == http.StatusTooManyRequests:
		return dto.ErrRateLimitExceeded
	case status == http.StatusServiceUnavailable:
		return dto.ErrServiceUnavailable
	case status == http.StatusGatewayTimeout:
		return dto.ErrGatewayTimeout
	default:
		return dto.ErrInternal
	}
}

func knownCode(code dto.ErrorCode) bool {
	switch code {
	case dto.ErrValidation, dto.ErrUnauthorized, dto.ErrForbidden, dto.ErrNotFound,
		dto.ErrConflict, dto.ErrGone, dto.ErrRateLimitExceeded, dto.ErrInternal,
		dto.ErrServiceUnavailable, dto.ErrGatewayTimeout, dto.ErrGenerationTimeout,
		dto.ErrLLMUnavailable:
		return true
	}
	return false
}

// parseError decodes the backend error envelope. Bodies that are not the
// envelope, or carry a code we do not know, fall back to the status mapping.
func parseError(status int, body []byte, header http.Header) *APIError {
	apiErr := &APIError{
		Status:    status,
		Code:      codeForStatus(status),
		Message:   http.StatusText(status),
		RequestID: header.Get("X-Request-ID"),
	}

	var envelope dto.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiErr
	}
	if knownCode(envelope.Error.Code) {
		apiErr.Code = envelope.Error.Code
	}
	if envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
	}
	apiErr.Details = envelope.Error.Details
	apiErr.Timestamp = envelope.Error.Timestamp
	if envelope.Error.RequestId != "" {
		apiErr.RequestID = envelope.Error.RequestId
	}
	return apiErr
}
