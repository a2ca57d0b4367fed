package service

import (
	"context"
	"errors"
	"fmt"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/repository/contract"
	"prawnik-web/internal/session"
)

var ErrCurrentPasswordInvalid = errors.New("current password is incorrect")

type ISettingsService interface {
	// ChangePassword re-authenticates with the current password first.
	ChangePassword(ctx context.Context, s *session.State, req *dto.ChangePasswordRequest) error
	// DeleteAccount removes the account and ends the session.
	DeleteAccount(ctx context.Context, s *session.State) error
}

type settingsService struct {
	client   *gateway.Client
	provider authprovider.Provider
	sessions contract.ISessionRepository
	logger   logger.ILogger
}

func NewSettingsService(client *gateway.Client, provider authprovider.Provider, sessions contract.ISessionRepository, log logger.ILogger) ISettingsService {
	return &settingsService{client: client, provider: provider, sessions: sessions, logger: log}
}

func (s *settingsService) ChangePassword(ctx context.Context, state *session.State, req *dto.ChangePasswordRequest) error {
	fresh, err := s.provider.SignIn(ctx, state.User().Email, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, authprovider.ErrInvalidCredentials) {
			return ErrCurrentPasswordInvalid
		}
		return err
	}
	state.Adopt(fresh)

	if err := s.provider.UpdatePassword(ctx, state.AccessToken(), req.NewPassword); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("SettingsService", "Password changed", map[string]interface{}{"user_id": state.User().Id})
	return nil
}

func (s *settingsService) DeleteAccount(ctx context.Context, state *session.State) error {
	if err := s.client.DeleteAccount(ctx, state); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := s.provider.SignOut(ctx, state.AccessToken()); err != nil {
		// the account is gone; a stale provider session is harmless
		s.logger.Warn("SettingsService", "Sign-out after account deletion failed", map[string]interface{}{"error": err.Error()})
	}
	s.sessions.Delete(state.ID)
	s.logger.Info("SettingsService", "Account deleted", map[string]interface{}{"user_id": state.User().Id})
	return nil
}
