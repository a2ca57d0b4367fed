package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/repository/memory"
	"prawnik-web/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testCookie = CookieConfig{Secret: []byte("test-secret"), TTL: time.Hour}

func TestSessionCookie_RoundTrip(t *testing.T) {
	value, err := SignSessionID(testCookie, "sess-1", time.Now())
	require.NoError(t, err)

	id, err := ParseSessionID(testCookie, value)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	_, err = ParseSessionID(CookieConfig{Secret: []byte("other")}, value)
	assert.Error(t, err)

	expired, err := SignSessionID(testCookie, "sess-1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseSessionID(testCookie, expired)
	assert.Error(t, err)
}

type routingFixture struct {
	app      *fiber.App
	sessions *memory.SessionRepository
	state    *session.State
}

func newRoutingFixture(t *testing.T) *routingFixture {
	t.Helper()
	sessions := memory.NewSessionRepository(time.Hour, logger.NewNopLogger())
	state := session.New(&authprovider.Session{Token: &oauth2.Token{AccessToken: "a"}}, session.Options{})
	sessions.Save(state)

	app := fiber.New()
	app.Use(SessionMiddleware(testCookie, sessions))
	app.Use(RedirectRules())
	ok := func(ctx *fiber.Ctx) error { return ctx.SendString("ok") }
	for _, p := range []string{"/", "/login", "/register", "/forgot-password", "/reset-password", "/app", "/app/history", "/app/api/rate-limit"} {
		app.Get(p, ok)
	}
	return &routingFixture{app: app, sessions: sessions, state: state}
}

func (f *routingFixture) get(t *testing.T, path string, signedIn bool) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if signedIn {
		value, err := SignSessionID(testCookie, f.state.ID, time.Now())
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: value})
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRedirectRules(t *testing.T) {
	f := newRoutingFixture(t)

	tests := []struct {
		path     string
		signedIn bool
		status   int
		location string
	}{
		{"/login", true, http.StatusFound, "/app"},
		{"/register", true, http.StatusFound, "/app"},
		{"/forgot-password", true, http.StatusFound, "/app"},
		{"/login", false, http.StatusOK, ""},
		{"/app", false, http.StatusFound, "/login"},
		{"/app/history", false, http.StatusFound, "/login"},
		{"/app", true, http.StatusOK, ""},
		{"/reset-password", true, http.StatusOK, ""},
		{"/reset-password", false, http.StatusOK, ""},
		{"/", false, http.StatusOK, ""},
		{"/app/api/rate-limit", false, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s signedIn=%v", tt.path, tt.signedIn), func(t *testing.T) {
			resp := f.get(t, tt.path, tt.signedIn)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get("Location"))
			}
		})
	}
}

func TestRedirectRules_APIAnswersWithRedirectHint(t *testing.T) {
	f := newRoutingFixture(t)
	resp := f.get(t, "/app/api/rate-limit", false)

	var body BaseResponse[any]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "/login", body.Redirect)
	assert.Equal(t, dto.ErrUnauthorized, body.ErrorCode)
}

func TestSessionMiddleware_UnknownSessionClearsCookie(t *testing.T) {
	f := newRoutingFixture(t)
	f.sessions.Delete(f.state.ID)

	resp := f.get(t, "/app", true)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), SessionCookieName+"=;")
}

func errorApp(err error, expired *bool) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger(), func(*fiber.Ctx) { *expired = true }))
	app.Get("/app/api/x", func(*fiber.Ctx) error { return err })
	app.Get("/app/page", func(*fiber.Ctx) error { return err })
	return app
}

func TestErrorHandler(t *testing.T) {
	type form struct {
		Password string `json:"password" validate:"required,password"`
	}
	validationErr := ValidateRequest(form{Password: "onlyletters"})
	require.Error(t, validationErr)

	tests := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"validation", validationErr, http.StatusUnprocessableEntity, dto.ErrValidation},
		{"backend not found", &gateway.APIError{Status: 404, Code: dto.ErrNotFound}, http.StatusNotFound, dto.ErrNotFound},
		{"network", &gateway.APIError{Status: 0, Code: dto.ErrServiceUnavailable}, http.StatusServiceUnavailable, dto.ErrServiceUnavailable},
		{"limiter", session.ErrTooManyActiveQueries, http.StatusTooManyRequests, dto.ErrTooManyActive},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrInternal},
		{"session expired", fmt.Errorf("%w: %w", gateway.ErrSessionExpired, &gateway.APIError{Status: 401}), http.StatusUnauthorized, dto.ErrSessionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var expired bool
			resp, err := errorApp(tt.err, &expired).Test(httptest.NewRequest(http.MethodGet, "/app/api/x", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.ErrorCode)
			assert.Equal(t, dto.MessageFor(tt.code), body.Message)
			assert.Equal(t, tt.code == dto.ErrSessionExpired, expired)
		})
	}
}

func TestErrorHandler_SessionExpiredOnPageRedirects(t *testing.T) {
	var expired bool
	resp, err := errorApp(gateway.ErrSessionExpired, &expired).Test(httptest.NewRequest(http.MethodGet, "/app/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.True(t, expired)
	_, _ = io.Copy(io.Discard, resp.Body)
}

func TestValidateRequest_PasswordRules(t *testing.T) {
	tests := []struct {
		name string
		req  dto.RegisterRequest
		bad  string
	}{
		{"ok", dto.RegisterRequest{Email: "a@b.pl", Password: "Haslo1234", ConfirmPassword: "Haslo1234"}, ""},
		{"polish letters count", dto.RegisterRequest{Email: "a@b.pl", Password: "zażółć123", ConfirmPassword: "zażółć123"}, ""},
		{"no digit", dto.RegisterRequest{Email: "a@b.pl", Password: "HasloHaslo", ConfirmPassword: "HasloHaslo"}, "password"},
		{"too short", dto.RegisterRequest{Email: "a@b.pl", Password: "a1", ConfirmPassword: "a1"}, "password"},
		{"mismatch", dto.RegisterRequest{Email: "a@b.pl", Password: "Haslo1234", ConfirmPassword: "Haslo12345"}, "confirm_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.bad == "" {
				assert.NoError(t, err)
				return
			}
			var ve validator.ValidationErrors
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.bad)
		})
	}
}
