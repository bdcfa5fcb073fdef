package handler

import (
	"github.com/suiichiba/marketplace/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse acknowledges requests whose effect happens out of band
// (a mail sent, a job queued).
type messageResponse struct {
	Message string `json:"message"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// --- Request / Response types ---

// signInRequest is the sign-in form. Which fields are read depends on mode;
// the rest are ignored.
type signInRequest struct {
	FlowID      string `json:"flow_id"`
	Mode        string `json:"mode"         validate:"required,oneof=email username phone passwordless social"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	OTP         string `json:"otp"`
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
}

type signUpRequest struct {
	Email           string `json:"email"            validate:"required,email"`
	Username        string `json:"username"         validate:"omitempty,min=3,max=32"`
	Password        string `json:"password"         validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Phone           string `json:"phone"`
	DisplayName     string `json:"display_name"     validate:"max=64"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=6"`
}

type tokenRequest struct {
	Token string `query:"token" json:"token" validate:"required"`
}

// sessionFrame is one message of the session stream. A null session means
// the user is signed out.
type sessionFrame struct {
	Session *domain.Session `json:"session"`
}
