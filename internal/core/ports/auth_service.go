package ports

import (
	"context"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// IdentityProvider is the authentication provider seen by the sign-in flow.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error)
	ResolveUsername(ctx context.Context, username string) (string, error)
	// SendOTP dispatches a code to phone and returns the verification id that
	// must accompany the code.
	SendOTP(ctx context.Context, phone string) (string, error)
	VerifyOTP(ctx context.Context, verificationID, code string) (*domain.Identity, error)
	SendSignInLink(ctx context.Context, email string) error
	SignInWithOAuth(ctx context.Context, provider, accessToken string) (*domain.Identity, error)
}

// AccountManager covers the account operations of the authentication
// provider that do not produce a session on their own.
type AccountManager interface {
	SignUp(ctx context.Context, in SignUpInput) (*domain.Identity, error)
	CompleteSignInLink(ctx context.Context, token string) (*domain.Identity, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	SendEmailVerification(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, token string) error
}

// SessionIssuer turns an authenticated identity into a session and token.
type SessionIssuer interface {
	Issue(ctx context.Context, id *domain.Identity) (*domain.Session, string, error)
}

// AuthFailure is the caller-facing description of a failed sign-in.
type AuthFailure struct {
	Kind    domain.FailureKind `json:"kind"`
	Message string             `json:"message"`
}

// AuthOutcome is the result of one sign-in submission. Session and Token are
// set only in the Success state.
type AuthOutcome struct {
	FlowID  string            `json:"flow_id"`
	Mode    domain.SignInMode `json:"mode"`
	State   domain.FlowState  `json:"state"`
	Message string            `json:"message,omitempty"`
	Session *domain.Session   `json:"session,omitempty"`
	Token   string            `json:"token,omitempty"`
	Failure *AuthFailure      `json:"failure,omitempty"`
}

// SignUpInput carries the sign-up form.
type SignUpInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	Phone           string
	DisplayName     string
}

// AuthService is the transport-facing authentication surface.
type AuthService interface {
	Authenticate(ctx context.Context, flowID string, cred domain.Credential) (*AuthOutcome, error)
	SignUp(ctx context.Context, in SignUpInput) (*AuthOutcome, error)
	CompleteEmailLink(ctx context.Context, token string) (*AuthOutcome, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	SendEmailVerification(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, token string) error
}

// SessionService owns the session lifecycle and its change stream.
type SessionService interface {
	SessionIssuer
	Validate(ctx context.Context, token string) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	// Subscribe delivers the current session, then every change; nil means
	// signed out. The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, sessionID string) (<-chan *domain.Session, error)
}
