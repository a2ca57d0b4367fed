// FILE: internal/service/auth_service.go
package service

import (
	"context"
	"strings"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/repository/contract"
	"prawnik-web/internal/session"
)

// SessionFactory builds the server-side state for fresh credentials.
type SessionFactory func(auth *authprovider.Session) *session.State

type IAuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*session.State, error)
	// Register returns a nil state when the account needs e-mail
	// confirmation before the first sign-in.
	Register(ctx context.Context, req *dto.RegisterRequest) (*session.State, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
	Logout(ctx context.Context, s *session.State)
	// Expire drops a session whose credentials can no longer be refreshed.
	Expire(sessionID string)
}

type authService struct {
	provider   authprovider.Provider
	sessions   contract.ISessionRepository
	newSession SessionFactory
	baseURL    string
	logger     logger.ILogger
}

func NewAuthService(provider authprovider.Provider, sessions contract.ISessionRepository, newSession SessionFactory, baseURL string, log logger.ILogger) IAuthService {
	return &authService{
		provider:   provider,
		sessions:   sessions,
		newSession: newSession,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

func (s *authService) start(auth *authprovider.Session) *session.State {
	state := s.newSession(auth)
	s.sessions.Save(state)
	s.logger.Info("AuthService", "Session started", map[string]interface{}{
		"session_id": state.ID,
		"user_id":    auth.User.Id,
	})
	return state
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*session.State, error) {
	auth, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.start(auth), nil
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*session.State, error) {
	auth, err := s.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, nil
	}
	return s.start(auth), nil
}

func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	return s.provider.Recover(ctx, req.Email, s.baseURL+"/reset-password")
}

// ResetPassword exchanges the e-mailed token for a short-lived session,
// sets the new password and signs that session out again.
func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	auth, err := s.provider.VerifyRecovery(ctx, req.TokenHash)
	if err != nil {
		return err
	}
	if err := s.provider.UpdatePassword(ctx, auth.Token.AccessToken, req.Password); err != nil {
		return err
	}
	if err := s.provider.SignOut(ctx, auth.Token.AccessToken); err != nil {
		s.logger.Warn("AuthService", "Sign-out after password reset failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (s *authService) Logout(ctx context.Context, state *session.State) {
	if token := state.AccessToken(); token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			s.logger.Warn("AuthService", "Provider sign-out failed", map[string]interface{}{
				"session_id": state.ID,
				"error":      err.Error(),
			})
		}
	}
	s.sessions.Delete(state.ID)
}

func (s *authService) Expire(sessionID string) {
	s.sessions.Delete(sessionID)
	s.logger.Info("AuthService", "Session expired", map[string]interface{}{"session_id": sessionID})
}
