package ports

import (
	"context"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// EscrowTransition carries the fields written together with a status change.
type EscrowTransition struct {
	From            domain.EscrowStatus
	To              domain.EscrowStatus
	ConfirmTxDigest string
}

type EscrowRepository interface {
	Create(ctx context.Context, e *domain.Escrow) (*domain.Escrow, error)
	FindByID(ctx context.Context, id string) (*domain.Escrow, error)
	// Transition applies the change only when the escrow is still in t.From;
	// otherwise it returns domain.ErrInvalidTransition.
	Transition(ctx context.Context, id string, t EscrowTransition) (*domain.Escrow, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Escrow, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
}
