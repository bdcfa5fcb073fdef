package ports

import (
	"context"
	"time"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// ProfileUpdate lists the profile fields a user may edit. Nil fields are
// left untouched.
type ProfileUpdate struct {
	DisplayName      *string
	Bio              *string
	AvatarPath       *string
	PhotoURL         *string
	SuiWalletAddress *string
	LastPaymentAt    *time.Time
}

// ProfileRepository persists marketplace profiles and their balances.
// Balance changes go through CreditOnce and DecrementBalance only; both are
// single atomic updates in the store.
type ProfileRepository interface {
	// Ensure creates the profile when it does not exist and returns the stored one.
	Ensure(ctx context.Context, p *domain.UserProfile) (*domain.UserProfile, error)
	FindByID(ctx context.Context, userID string) (*domain.UserProfile, error)
	Update(ctx context.Context, userID string, upd ProfileUpdate) (*domain.UserProfile, error)
	// CreditOnce adds amount (> 0) unless reference was already applied to
	// this profile, in the same atomic update that records the reference.
	// It returns the balance and whether this call applied the credit, so a
	// retry after an ambiguous failure never credits twice.
	CreditOnce(ctx context.Context, userID, reference string, amount float64) (balance float64, applied bool, err error)
	// DecrementBalance subtracts amount (> 0) only when the balance covers it;
	// otherwise it returns domain.ErrInsufficientBalance.
	DecrementBalance(ctx context.Context, userID string, amount float64) (float64, error)
}
