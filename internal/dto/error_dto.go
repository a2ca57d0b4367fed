// FILE: internal/dto/error_dto.go
package dto

// ErrorCode is the error-kind code carried by the backend error envelope.
type ErrorCode string

const (
	ErrValidation         ErrorCode = "VALIDATION_ERROR"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrGone               ErrorCode = "GONE"
	ErrRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal           ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrGatewayTimeout     ErrorCode = "GATEWAY_TIMEOUT"
	ErrGenerationTimeout  ErrorCode = "GENERATION_TIMEOUT"
	ErrLLMUnavailable     ErrorCode = "LLM_SERVICE_UNAVAILABLE"

	// Local codes, never sent by the backend.
	ErrSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrTooManyActive  ErrorCode = "TOO_MANY_ACTIVE_QUERIES"
	ErrContextExpired ErrorCode = "CONTEXT_EXPIRED"
	ErrRatingInFlight ErrorCode = "RATING_IN_FLIGHT"
	ErrNoRelevantActs ErrorCode = "NO_RELEVANT_ACTS"
)

type ErrorBody struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
	RequestId string                 `json:"request_id,omitempty"`
}

// ErrorEnvelope is the shape of every error response of the backend.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

var userMessages = map[ErrorCode]string{
	ErrValidation:         "Nieprawidłowe dane. Popraw zaznaczone pola.",
	ErrUnauthorized:       "Musisz się zalogować, aby kontynuować.",
	ErrSessionExpired:     "Sesja wygasła. Zaloguj się ponownie.",
	ErrForbidden:          "Nie masz dostępu do tego zasobu.",
	ErrNotFound:           "Ten element już nie istnieje.",
	ErrConflict:           "Operacja jest już w toku.",
	ErrGone:               "Ten zasób został usunięty.",
	ErrRateLimitExceeded:  "Przekroczono limit zapytań. Spróbuj ponownie za chwilę.",
	ErrServiceUnavailable: "Brak połączenia z serwerem. Sprawdź połączenie internetowe.",
	ErrGatewayTimeout:     "Serwer nie odpowiedział na czas. Spróbuj ponownie.",
	ErrGenerationTimeout:  "Przekroczono czas oczekiwania na odpowiedź. Spróbuj ponownie.",
	ErrLLMUnavailable:     "Model językowy jest chwilowo niedostępny. Spróbuj ponownie później.",
	ErrTooManyActive:      "Poczekaj, aż zakończy się jedno z Twoich 3 zapytań.",
	ErrContextExpired:     "Kontekst zapytania wygasł. Zadaj pytanie ponownie, aby uzyskać dokładną odpowiedź.",
	ErrRatingInFlight:     "Ocena jest już wysyłana.",
	ErrNoRelevantActs:     "Nie znaleziono aktów prawnych pasujących do pytania.",
}

// MessageFor returns the user-facing message for an error kind.
func MessageFor(code ErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return "Wystąpił nieoczekiwany błąd. Spróbuj ponownie."
}
