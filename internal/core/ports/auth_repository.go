package ports

import (
	"context"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// IdentityUpdate lists the identity fields that may change after creation.
// Nil fields are left untouched.
type IdentityUpdate struct {
	PasswordHash  *string
	EmailVerified *bool
	DisplayName   *string
	PhotoURL      *string
	Email         *string
}

// IdentityRepository persists the authentication provider's user records.
type IdentityRepository interface {
	Create(ctx context.Context, id *domain.Identity) (*domain.Identity, error)
	FindByID(ctx context.Context, userID string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Identity, error)
	FindByProvider(ctx context.Context, provider, subject string) (*domain.Identity, error)
	Update(ctx context.Context, userID string, upd IdentityUpdate) error
	LinkProvider(ctx context.Context, userID string, link domain.LinkedProvider) error
}

// UsernameRepository persists the username → e-mail mapping used by
// username sign-in.
type UsernameRepository interface {
	Create(ctx context.Context, rec *domain.UsernameRecord) error
	Find(ctx context.Context, username string) (*domain.UsernameRecord, error)
}
