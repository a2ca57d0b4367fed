// FILE: internal/authprovider/gotrue.go
package authprovider

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
	"prawnik-web/internal/pkg/logger"

	"golang.org/x/oauth2"
)

// GoTrue talks to a Supabase-compatible auth REST API.
type GoTrue struct {
	baseURL string
	anonKey string
	client  *http.Client
	logger  logger.ILogger
	now     func() time.Time
}

var _ Provider = (*GoTrue)(nil)

func NewGoTrue(baseURL, anonKey string, timeout time.Duration, log logger.ILogger) *GoTrue {
	return &GoTrue{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
		now:     time.Now,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gotrueUser struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *gotrueUser `json:"user"`

	// signup without auto-confirm answers with the bare user
	Id    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

func (g *GoTrue) toSession(s *gotrueSession) *Session {
	if s.AccessToken == "" {
		return nil
	}
	expiry := time.Time{}
	switch {
	case s.ExpiresAt > 0:
		expiry = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		expiry = g.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	out := &Session{Token: &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       expiry,
	}}
	if s.User != nil {
		out.User = dto.UserInfo{Id: s.User.Id, Email: s.User.Email}
	}
	return out
}

func (g *GoTrue) do(ctx context.Context, method, path string, query url.Values, body interface{}, bearer string, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		g.logger.Warn("AuthProvider", "Auth provider unreachable", map[string]interface{}{"path": path, "error": err.Error()})
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		var ge gotrueError
		_ = json.Unmarshal(data, &ge)
		detail := firstNonEmpty(ge.ErrorDescription, ge.Msg, ge.Message, ge.Error, http.StatusText(resp.StatusCode))
		g.logger.Info("AuthProvider", "Auth provider rejected request", map[string]interface{}{
			"path":       path,
			"status":     resp.StatusCode,
			"error_code": ge.ErrorCode,
		})
		return resp.StatusCode, fmt.Errorf("%w: %s", classify(resp.StatusCode), detail)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func classify(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrTooManyAttempts
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var out gotrueSession
	_, err := g.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}},
		credentialsRequest{Email: strings.TrimSpace(email), Password: password}, "", &out)
	if err != nil {
		if isRejected(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	s := g.toSession(&out)
	if s == nil {
		return nil, ErrInvalidCredentials
	}
	return s, nil
}

func (g *GoTrue) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var out gotrueSession
	if _, err := g.do(ctx, http.MethodPost, "/auth/v1/signup", nil,
		credentialsRequest{Email: strings.TrimSpace(email), Password: password}, "", &out); err != nil {
		return nil, err
	}
	return g.toSession(&out), nil
}

func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	var out gotrueSession
	_, err := g.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, "", &out)
	if err != nil {
		if isRejected(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	s := g.toSession(&out)
	if s == nil {
		return nil, ErrInvalidToken
	}
	return s, nil
}

func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	_, err := g.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, accessToken, nil)
	return err
}

func (g *GoTrue) Recover(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	_, err := g.do(ctx, http.MethodPost, "/auth/v1/recover", q, map[string]string{"email": strings.TrimSpace(email)}, "", nil)
	// an unknown address is not reported back to the page
	if err != nil && isRejected(err) {
		return nil
	}
	return err
}

func (g *GoTrue) VerifyRecovery(ctx context.Context, tokenHash string) (*Session, error) {
	var out gotrueSession
	_, err := g.do(ctx, http.MethodPost, "/auth/v1/verify", nil,
		map[string]string{"type": "recovery", "token_hash": tokenHash}, "", &out)
	if err != nil {
		if isRejected(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	s := g.toSession(&out)
	if s == nil {
		return nil, ErrInvalidToken
	}
	return s, nil
}

func (g *GoTrue) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	_, err := g.do(ctx, http.MethodPut, "/auth/v1/user", nil, map[string]string{"password": newPassword}, accessToken, nil)
	return err
}

func isRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
