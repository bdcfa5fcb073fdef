package ports

import (
	"context"
	"time"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// DepositRepository is the deposit ledger.
type DepositRepository interface {
	// Insert stores a pending entry; a reference that already exists yields
	// domain.ErrConflict.
	Insert(ctx context.Context, d *domain.Deposit) error
	FindByReference(ctx context.Context, reference string) (*domain.Deposit, error)
	// MarkCredited moves the entry from pending to credited. It runs only
	// after the balance holds the credit; an entry that is already credited
	// is left as it is.
	MarkCredited(ctx context.Context, reference string, at time.Time) error
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Deposit, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Deposit, error)
}
