package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	sessions    ports.SessionService
}

func NewAuthHandler(authService ports.AuthService, sessions ports.SessionService) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

// SignIn submits the sign-in form for a flow. The first submission may omit
// flow_id; the returned flow_id must accompany the following ones (the OTP
// step of a phone sign-in in particular).
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Mode and the credential fields it needs"
// @Success      200   {object}  ports.AuthOutcome
// @Success      202   {object}  ports.AuthOutcome  "Code or link sent"
// @Failure      400   {object}  ports.AuthOutcome
// @Failure      401   {object}  ports.AuthOutcome
// @Failure      429   {object}  ports.AuthOutcome
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	outcome, err := h.authService.Authenticate(c.Request().Context(), req.FlowID, toCredential(req))
	if err != nil {
		return err
	}
	return c.JSON(outcomeStatus(outcome), outcome)
}

// SignUp registers an e-mail/password account and signs it in.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Registration form"
// @Success      201   {object}  ports.AuthOutcome
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	outcome, err := h.authService.SignUp(c.Request().Context(), toSignUpInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, outcome)
}

// CompleteEmailLink signs in with the token of a mailed sign-in link.
//
// @Summary      Complete a passwordless sign-in
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Token from the sign-in link"
// @Success      200    {object}  ports.AuthOutcome
// @Failure      401    {object}  ports.AuthOutcome
// @Router       /auth/email-link/complete [get]
func (h *AuthHandler) CompleteEmailLink(c echo.Context) error {
	var req tokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	outcome, err := h.authService.CompleteEmailLink(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(outcomeStatus(outcome), outcome)
}

// SendPasswordReset mails a password reset link.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      passwordResetRequest  true  "Account e-mail"
// @Success      202   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /auth/password-reset [post]
func (h *AuthHandler) SendPasswordReset(c echo.Context) error {
	var req passwordResetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.SendPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{Message: "password reset link sent"})
}

// ResetPassword sets a new password with the token of a reset link.
//
// @Summary      Reset a password
// @Tags         auth
// @Accept       json
// @Param        body  body  passwordResetConfirmRequest  true  "Reset token and new password"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Router       /auth/password-reset/confirm [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req passwordResetConfirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail confirms an address with the token of a verification mail.
//
// @Summary      Verify an e-mail address
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Token from the verification mail"
// @Success      200    {object}  messageResponse
// @Failure      400    {object}  errorResponse
// @Router       /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "email verified"})
}

// SendEmailVerification mails a verification link to the signed-in user.
//
// @Summary      Send a verification e-mail
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/verify-email/send [post]
func (h *AuthHandler) SendEmailVerification(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.SendEmailVerification(c.Request().Context(), s.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{Message: "verification email sent"})
}

// ChangePassword handles PUT /v1/settings/password.
//
// @Summary      Change the password
// @Tags         settings
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  changePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/settings/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.Request().Context(), s.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SignOut ends the current session on every device watching it.
//
// @Summary      Sign out
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.sessions.SignOut(c.Request().Context(), s.SessionID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Session returns the session behind the bearer token.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Session
// @Failure      401  {object}  errorResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// SessionStream upgrades to a websocket that receives the current session
// and every change to it. A frame with a null session is the last one.
//
// @Summary      Session change stream (websocket)
// @Tags         auth
// @Security     BearerAuth
// @Success      101
// @Failure      401  {object}  errorResponse
// @Router       /auth/session/stream [get]
func (h *AuthHandler) SessionStream(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	return streamJSON(c,
		func(ctx context.Context) (<-chan *domain.Session, error) {
			return h.sessions.Subscribe(ctx, s.SessionID)
		},
		func(s *domain.Session) any { return sessionFrame{Session: s} },
		func(s *domain.Session) bool { return s == nil },
	)
}

// outcomeStatus picks the HTTP status for a sign-in outcome. The body is the
// outcome in every case.
func outcomeStatus(o *ports.AuthOutcome) int {
	switch o.State {
	case domain.FlowSuccess:
		return http.StatusOK
	case domain.FlowAwaitingOTP, domain.FlowIdle:
		return http.StatusAccepted
	}
	if o.Failure == nil {
		return http.StatusUnauthorized
	}
	switch o.Failure.Kind {
	case domain.FailureValidation, domain.FailurePopupDismissed:
		return http.StatusBadRequest
	case domain.FailureUserNotFound:
		return http.StatusNotFound
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	case domain.FailureNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
