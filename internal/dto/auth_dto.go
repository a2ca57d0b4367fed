// FILE: internal/dto/auth_dto.go
package dto

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type RegisterRequest struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,min=8,max=72,password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=Password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	TokenHash       string `json:"token_hash" form:"token_hash" validate:"required"`
	Password        string `json:"password" form:"password" validate:"required,min=8,max=72,password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required,min=8,max=72,password,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type DeleteAccountRequest struct {
	Confirmation string `json:"confirmation" form:"confirmation" validate:"required,eq=USUŃ"`
}

// UserInfo is the identity extracted from the provider's access token.
type UserInfo struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}
