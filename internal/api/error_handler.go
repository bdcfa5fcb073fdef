package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes. Validation messages
	// are written for the user and pass through.
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnsupportedMode):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrPopupDismissed):
		return http.StatusBadRequest, domain.ErrPopupDismissed.Error()
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest, domain.ErrInvalidToken.Error()
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidOTP),
		errors.Is(err, domain.ErrOTPExpired),
		errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, domain.ErrPaymentNotSuccessful):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrWalletMissing):
		return http.StatusUnprocessableEntity, rootMessage(err)
	case errors.Is(err, domain.ErrConversionUnavailable):
		log.Warn().Err(err).Str("path", c.Path()).Msg("conversion unavailable")
		return http.StatusServiceUnavailable, "conversion rate unavailable"
	case errors.Is(err, domain.ErrRemote):
		log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("upstream failure")
		return http.StatusBadGateway, "upstream service unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// rootMessage returns the message of the domain sentinel err wraps, without
// the operation prefixes added on the way up.
func rootMessage(err error) string {
	for _, s := range []error{
		domain.ErrInvalidCredentials, domain.ErrInvalidOTP, domain.ErrOTPExpired,
		domain.ErrSessionExpired, domain.ErrInvalidTransition,
		domain.ErrInsufficientBalance, domain.ErrWalletMissing,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
