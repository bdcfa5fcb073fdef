package domain

import "errors"

// Validation and lookup errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("access forbidden")
	ErrConflict   = errors.New("already exists")
)

// Authentication errors. Their messages are shown to the caller verbatim.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidOTP         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired")
	ErrPopupDismissed     = errors.New("sign-in popup closed by user")
	ErrUnsupportedMode    = errors.New("unsupported sign-in mode")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionExpired     = errors.New("session expired")
	ErrRateLimited        = errors.New("too many requests")
)

// ErrRemote wraps any failed call to a collaborator over the network: the
// document store, the price feed, the payment gateway, the chain node, the
// SMS and mail gateways and the OAuth providers.
var ErrRemote = errors.New("remote service unavailable")

// Money movement errors.
var (
	ErrConversionUnavailable = errors.New("conversion rate unavailable")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrPaymentNotSuccessful  = errors.New("payment was not successful")
	ErrWalletMissing         = errors.New("sui wallet address is missing")
)
