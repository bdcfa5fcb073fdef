package ports

import (
	"context"
	"time"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// FlowStore keeps sign-in flow state between submissions.
type FlowStore interface {
	Get(ctx context.Context, flowID string) (*domain.SignInFlow, error)
	Save(ctx context.Context, flow *domain.SignInFlow) error
	Delete(ctx context.Context, flowID string) error
	// ClaimDispatch reserves the OTP dispatch of a flow. Exactly one caller
	// gets true until the claim is released or expires.
	ClaimDispatch(ctx context.Context, flowID string) (bool, error)
	ReleaseDispatch(ctx context.Context, flowID string) error
}

// Token kinds held in a TokenStore.
const (
	TokenOTP           = "otp"
	TokenSignInLink    = "signin_link"
	TokenPasswordReset = "password_reset"
	TokenEmailVerify   = "email_verify"
)

// TokenStore holds short-lived secrets: OTP verifications, e-mail link
// tokens and reset tokens. Get returns domain.ErrInvalidToken when the token
// is unknown or expired.
type TokenStore interface {
	Put(ctx context.Context, kind, token, value string, ttl time.Duration) error
	Get(ctx context.Context, kind, token string) (string, error)
	Delete(ctx context.Context, kind, token string) error
}

// SessionRegistry is the source of truth for "is this session signed in".
type SessionRegistry interface {
	Save(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Notifier is a topic-based change feed. Subscribe returns a channel that is
// closed once ctx is cancelled; cancelling ctx is the only way to
// unsubscribe.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
}
