package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/repository/memory"
	"prawnik-web/internal/session"
	"prawnik-web/internal/view"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testCookie = serverutils.CookieConfig{Secret: []byte("test-secret"), TTL: time.Hour}

func newState() *session.State {
	return session.New(&authprovider.Session{
		Token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)},
		User:  dto.UserInfo{Id: "u-1", Email: "jan@example.com"},
	}, session.Options{})
}

type fakeAuth struct {
	sessions  *memory.SessionRepository
	loginErr  error
	confirm   bool
	loggedOut int
}

func (f *fakeAuth) start() *session.State {
	state := newState()
	f.sessions.Save(state)
	return state
}

func (f *fakeAuth) Login(context.Context, *dto.LoginRequest) (*session.State, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.start(), nil
}

func (f *fakeAuth) Register(context.Context, *dto.RegisterRequest) (*session.State, error) {
	if f.confirm {
		return nil, nil
	}
	return f.start(), nil
}

func (f *fakeAuth) ForgotPassword(context.Context, *dto.ForgotPasswordRequest) error { return nil }

func (f *fakeAuth) ResetPassword(context.Context, *dto.ResetPasswordRequest) error { return nil }

func (f *fakeAuth) Logout(_ context.Context, s *session.State) {
	f.loggedOut++
	f.sessions.Delete(s.ID)
}

func (f *fakeAuth) Expire(id string) { f.sessions.Delete(id) }

type fakeChat struct {
	submitErr error
	retryErr  error
	submitted []string
}

func (f *fakeChat) Submit(_ context.Context, _ *session.State, req *dto.QuerySubmitRequest) (*dto.SubmitQueryResponse, error) {
	f.submitted = append(f.submitted, req.QueryText)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &dto.SubmitQueryResponse{Query: dto.QuerySubmitResponse{QueryId: "q-1", Status: dto.StatusPending}}, nil
}

func (f *fakeChat) View(context.Context, *session.State, string) (*dto.QueryView, error) {
	return &dto.QueryView{}, nil
}

func (f *fakeChat) RetryFast(_ context.Context, _ *session.State, id string) (*dto.PollState, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return &dto.PollState{QueryId: id, Kind: dto.KindFast, Phase: "polling"}, nil
}

func (f *fakeChat) RequestAccurate(context.Context, *session.State, string) (*dto.PollState, error) {
	return &dto.PollState{QueryId: "q-1", Kind: dto.KindAccurate, Phase: "requesting"}, nil
}

func (f *fakeChat) Rate(_ context.Context, _ *session.State, _ string, req *dto.RatingUpdate) (*dto.RatingState, error) {
	v := req.Value
	return &dto.RatingState{ResponseKind: req.ResponseKind, Value: &v}, nil
}

func (f *fakeChat) RateLimit(*session.State) dto.RateLimitState {
	return dto.RateLimitState{Used: 2, Limit: 10, CanSubmit: true}
}

func (f *fakeChat) ActiveQueries(*session.State) dto.ActiveQueriesState {
	return dto.ActiveQueriesState{Count: 0, Max: 3, CanAdd: true}
}

func (f *fakeChat) Examples(context.Context) ([]dto.ExampleQuestion, error) {
	return []dto.ExampleQuestion{{Id: 1, Question: "Jak założyć spółkę z o.o.?", Category: "prawo handlowe"}}, nil
}

type fakeSettings struct{ deleted int }

func (f *fakeSettings) ChangePassword(context.Context, *session.State, *dto.ChangePasswordRequest) error {
	return nil
}

func (f *fakeSettings) DeleteAccount(context.Context, *session.State) error {
	f.deleted++
	return nil
}

type fixture struct {
	app      *fiber.App
	sessions *memory.SessionRepository
	auth     *fakeAuth
	chat     *fakeChat
	settings *fakeSettings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := memory.NewSessionRepository(time.Hour, logger.NewNopLogger())
	f := &fixture{
		sessions: sessions,
		auth:     &fakeAuth{sessions: sessions},
		chat:     &fakeChat{},
		settings: &fakeSettings{},
	}

	app := fiber.New(fiber.Config{Views: view.New()})
	app.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger(), nil))
	app.Use(serverutils.SessionMiddleware(testCookie, sessions))
	app.Use(serverutils.RedirectRules())

	NewPageController().RegisterRoutes(app)
	NewAuthController(f.auth, testCookie).RegisterRoutes(app)
	NewChatController(f.chat, logger.NewNopLogger()).RegisterRoutes(app)
	NewSettingsController(f.settings, testCookie).RegisterRoutes(app)
	f.app = app
	return f
}

func (f *fixture) signIn(t *testing.T, req *http.Request) *session.State {
	t.Helper()
	state := newState()
	f.sessions.Save(state)
	value, err := serverutils.SignSessionID(testCookie, state.ID, time.Now())
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: serverutils.SessionCookieName, Value: value})
	return state
}

func (f *fixture) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	return req
}

func TestLogin_SetsCookieAndRedirects(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, formRequest("/login", url.Values{"email": {"jan@example.com"}, "password": {"haslo123"}}))

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/app", resp.Header.Get("Location"))
	assert.Contains(t, resp.Header.Get("Set-Cookie"), serverutils.SessionCookieName+"=")
	assert.Equal(t, 1, f.sessions.Count())
}

func TestLogin_InvalidCredentialsRendersMessage(t *testing.T) {
	f := newFixture(t)
	f.auth.loginErr = authprovider.ErrInvalidCredentials

	resp, body := f.do(t, formRequest("/login", url.Values{"email": {"jan@example.com"}, "password": {"zle"}}))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Nieprawidłowy email lub hasło")
	assert.Contains(t, body, `value="jan@example.com"`)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
}

func TestLogin_ValidationErrorsPerField(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, formRequest("/login", url.Values{"email": {"nie-email"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "field-error")
	assert.Equal(t, 0, f.sessions.Count())
}

func TestLoginPage_ShowsFlash(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, httptest.NewRequest(http.MethodGet, "/login?passwordReset=true", nil))
	assert.Contains(t, body, "Hasło zostało zmienione")
}

func TestRegister_ConfirmationRequired(t *testing.T) {
	f := newFixture(t)
	f.auth.confirm = true

	resp, body := f.do(t, formRequest("/register", url.Values{
		"email":            {"nowy@example.com"},
		"password":         {"haslo1234"},
		"confirm_password": {"haslo1234"},
	}))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "nowy@example.com")
	assert.Contains(t, body, "link aktywacyjny")
	assert.Equal(t, 0, f.sessions.Count())
}

func TestRegister_SignsInWithFirstLoginFlag(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, formRequest("/register", url.Values{
		"email":            {"nowy@example.com"},
		"password":         {"haslo1234"},
		"confirm_password": {"haslo1234"},
	}))

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/app?firstLogin=true", resp.Header.Get("Location"))
}

func TestLogout_DropsSession(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	state := f.signIn(t, req)

	resp, _ := f.do(t, req)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.auth.loggedOut)
	_, ok := f.sessions.Peek(state.ID)
	assert.False(t, ok)
}

func TestChatPage_RendersExamplesAndCounters(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/app?firstLogin=true", nil)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Jak założyć spółkę z o.o.?")
	assert.Contains(t, body, "Witaj w PrawnikGPT")
	assert.Contains(t, body, `data-max-active="3"`)
}

func TestSubmit_Accepted(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries", `{"query_text":"Jakie są terminy przedawnienia roszczeń?"}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out serverutils.BaseResponse[dto.SubmitQueryResponse]
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "q-1", out.Data.Query.QueryId)
}

func TestSubmit_TooShortIsRejectedWithFieldErrors(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries", `{"query_text":"krótkie"}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "query_text")
}

func TestSubmit_PaddingDoesNotCountTowardsMinimum(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries", `{"query_text":"      abc      "}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "query_text")
	assert.Empty(t, f.chat.submitted)
}

func TestSubmit_SendsTrimmedText(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries", `{"query_text":"  Jakie są terminy przedawnienia?  "}`)
	f.signIn(t, req)

	resp, _ := f.do(t, req)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"Jakie są terminy przedawnienia?"}, f.chat.submitted)
}

func TestRetry_Accepted(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries/q-7/retry", `{}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out serverutils.BaseResponse[dto.PollState]
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "q-7", out.Data.QueryId)
	assert.Equal(t, dto.KindFast, out.Data.Kind)
}

func TestRetry_LimiterRejectionIs429(t *testing.T) {
	f := newFixture(t)
	f.chat.retryErr = session.ErrTooManyActiveQueries
	req := jsonRequest(http.MethodPost, "/app/api/queries/q-7/retry", `{}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, string(dto.ErrTooManyActive))
}

func TestSubmit_LimiterRejectionIs429(t *testing.T) {
	f := newFixture(t)
	f.chat.submitErr = session.ErrTooManyActiveQueries
	req := jsonRequest(http.MethodPost, "/app/api/queries", `{"query_text":"Jakie są terminy przedawnienia roszczeń?"}`)
	f.signIn(t, req)

	resp, body := f.do(t, req)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, string(dto.ErrTooManyActive))
}

func TestRate_RejectsUnknownValue(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/app/api/queries/q-1/ratings", `{"response_type":"fast","rating_value":"meh"}`)
	f.signIn(t, req)

	resp, _ := f.do(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteAccount_RequiresConfirmationWord(t *testing.T) {
	f := newFixture(t)
	req := formRequest("/app/settings/delete", url.Values{"confirmation": {"usun"}})
	f.signIn(t, req)

	resp, _ := f.do(t, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 0, f.settings.deleted)
}

func TestDeleteAccount_ClearsCookieAndRedirects(t *testing.T) {
	f := newFixture(t)
	req := formRequest("/app/settings/delete", url.Values{"confirmation": {"USUŃ"}})
	f.signIn(t, req)

	resp, _ := f.do(t, req)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?deleted=true", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.settings.deleted)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), serverutils.SessionCookieName+"=;")
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) (*dto.HealthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.HealthResponse{Status: "healthy"}, nil
}

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func TestHealth_DegradedWhenBackendDown(t *testing.T) {
	app := fiber.New()
	NewOpsController(fakeHealth{err: errors.New("dial tcp: refused")}, fixedCount(4), nil, "test").RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out serverutils.BaseResponse[dto.HealthResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "degraded", out.Data.Status)
	assert.Equal(t, "unreachable", out.Data.Services["backend"])
	assert.Equal(t, "4", out.Data.Services["sessions"])
}

func TestHealth_Healthy(t *testing.T) {
	app := fiber.New()
	NewOpsController(fakeHealth{}, fixedCount(0), nil, "test").RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)

	var out serverutils.BaseResponse[dto.HealthResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "healthy", out.Data.Status)
}
