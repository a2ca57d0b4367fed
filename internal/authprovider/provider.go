// FILE: internal/authprovider/provider.go
package authprovider

import (
	"context"
	"errors"

	"prawnik-web/internal/dto"

	"golang.org/x/oauth2"
)

// Errors are deliberately coarse so pages never reveal whether an account
// exists.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrUnavailable        = errors.New("auth provider unavailable")
	ErrInvalidToken       = errors.New("token invalid or expired")
	ErrRejected           = errors.New("request rejected by auth provider")
)

type Session struct {
	Token *oauth2.Token
	User  dto.UserInfo
}

// Provider issues, refreshes and revokes credentials.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil Session when the account must be confirmed by
	// e-mail before the first sign-in.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Recover(ctx context.Context, email, redirectTo string) error
	VerifyRecovery(ctx context.Context, tokenHash string) (*Session, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// Message is the user-facing text for a provider error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Nieprawidłowy email lub hasło"
	case errors.Is(err, ErrTooManyAttempts):
		return "Zbyt wiele prób. Spróbuj ponownie za chwilę."
	case errors.Is(err, ErrUnavailable):
		return "Błąd połączenia. Sprawdź połączenie internetowe."
	case errors.Is(err, ErrInvalidToken):
		return "Link wygasł lub jest nieprawidłowy. Poproś o nowy."
	default:
		return "Wystąpił błąd. Spróbuj ponownie."
	}
}
