package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	escrowModule       = "escrow"
	mistPerSui         = 1_000_000_000
	defaultEscrowGas   = 10_000_000
	fnCreateEscrow     = "create_escrow"
	fnConfirmPurchase  = "confirm_purchase"
	fnTransferDeposits = "deposit"
)

// ToMist converts a SUI amount to the chain's smallest unit.
func ToMist(sui float64) uint64 {
	return uint64(math.Round(sui * mistPerSui))
}

type escrowService struct {
	escrows   ports.EscrowRepository
	products  ports.ProductRepository
	profiles  ports.ProfileRepository
	balances  ports.BalanceService
	converter ports.Converter
	chain     ports.ChainClient
	notes     ports.NotificationRepository
	log       zerolog.Logger
	now       func() time.Time
}

// NewEscrowService returns an EscrowService implementation.
func NewEscrowService(
	escrows ports.EscrowRepository,
	products ports.ProductRepository,
	profiles ports.ProfileRepository,
	balances ports.BalanceService,
	converter ports.Converter,
	chain ports.ChainClient,
	notes ports.NotificationRepository,
	log zerolog.Logger,
) ports.EscrowService {
	return &escrowService{
		escrows:   escrows,
		products:  products,
		profiles:  profiles,
		balances:  balances,
		converter: converter,
		chain:     chain,
		notes:     notes,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create debits the buyer and records the purchase on chain. A failed move
// call refunds the buyer and leaves a failed escrow behind for the record.
func (s *escrowService) Create(ctx context.Context, buyerID, productID string) (*domain.Escrow, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}
	if product.OwnedBy(buyerID) {
		return nil, fmt.Errorf("%w: you cannot buy your own product", domain.ErrValidation)
	}

	buyer, err := s.profiles.FindByID(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("create escrow: buyer: %w", err)
	}
	seller, err := s.profiles.FindByID(ctx, product.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("create escrow: seller: %w", err)
	}
	if buyer.SuiWalletAddress == "" || seller.SuiWalletAddress == "" {
		return nil, domain.ErrWalletMissing
	}

	amount, err := s.amountFor(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}

	if _, err := s.balances.Debit(ctx, buyerID, amount); err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}

	e := &domain.Escrow{
		ProductID:     product.ID,
		BuyerID:       buyerID,
		SellerID:      product.OwnerUserID,
		BuyerAddress:  buyer.SuiWalletAddress,
		SellerAddress: seller.SuiWalletAddress,
		Amount:        amount,
		CreatedAt:     s.now(),
	}

	tx, callErr := s.chain.MoveCall(ctx, ports.MoveCall{
		Module:    escrowModule,
		Function:  fnCreateEscrow,
		Arguments: []any{e.SellerAddress, ToMist(amount), product.ID},
		GasBudget: defaultEscrowGas,
	})
	if callErr != nil {
		refund := ports.PayoutInput{UserID: buyerID, Reference: "escrow-refund:" + uuid.NewString(), AmountSui: amount, Source: domain.SourceRefund}
		if _, err := s.balances.Payout(ctx, refund); err != nil {
			s.log.Error().Err(err).Str("buyer_id", buyerID).Str("reference", refund.Reference).Float64("amount", amount).Msg("escrow refund not credited")
		}
		e.Status = domain.EscrowFailed
		e.FailureReason = callErr.Error()
		if _, err := s.escrows.Create(ctx, e); err != nil {
			s.log.Error().Err(err).Str("product_id", product.ID).Msg("failed escrow not recorded")
		}
		metrics.EscrowsTotal.WithLabelValues(string(domain.EscrowFailed)).Inc()
		return nil, fmt.Errorf("create escrow: %w", callErr)
	}

	e.Status = domain.EscrowActive
	e.TxDigest = tx.Digest
	created, err := s.escrows.Create(ctx, e)
	if err != nil {
		s.log.Error().Err(err).Str("tx_digest", tx.Digest).Str("buyer_id", buyerID).Msg("escrow submitted on chain but not recorded")
		return nil, fmt.Errorf("record escrow: %w", err)
	}

	metrics.EscrowsTotal.WithLabelValues(string(domain.EscrowActive)).Inc()
	s.notify(ctx, created.SellerID, fmt.Sprintf("%s was purchased. %.4f SUI is held in escrow.", product.Name, amount))
	s.log.Info().Str("escrow_id", created.ID).Str("tx_digest", tx.Digest).Msg("escrow created")
	return created, nil
}

// Confirm releases an active escrow to the seller. Only the buyer may confirm.
// The seller payout is a ledger entry keyed by the escrow, so a payout that
// fails after the transition is retried by the reconciler, and confirming a
// completed escrow again only re-drives that same entry.
func (s *escrowService) Confirm(ctx context.Context, buyerID, escrowID string) (*domain.Escrow, error) {
	e, err := s.escrows.FindByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("confirm escrow: %w", err)
	}
	if e.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if e.Status == domain.EscrowCompleted {
		if err := s.paySeller(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	}
	if !e.Status.CanTransitionTo(domain.EscrowCompleted) {
		return nil, fmt.Errorf("confirm escrow: %w: %s -> %s", domain.ErrInvalidTransition, e.Status, domain.EscrowCompleted)
	}

	tx, err := s.chain.MoveCall(ctx, ports.MoveCall{
		Module:    escrowModule,
		Function:  fnConfirmPurchase,
		Arguments: []any{e.TxDigest, e.ProductID},
		GasBudget: defaultEscrowGas,
	})
	if err != nil {
		return nil, fmt.Errorf("confirm escrow: %w", err)
	}

	updated, err := s.escrows.Transition(ctx, escrowID, ports.EscrowTransition{
		From:            domain.EscrowActive,
		To:              domain.EscrowCompleted,
		ConfirmTxDigest: tx.Digest,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Warn().Str("escrow_id", escrowID).Msg("escrow confirmed concurrently")
		}
		return nil, fmt.Errorf("confirm escrow: %w", err)
	}
	metrics.EscrowsTotal.WithLabelValues(string(domain.EscrowCompleted)).Inc()

	if err := s.paySeller(ctx, updated); err != nil {
		return nil, err
	}
	s.notify(ctx, updated.SellerID, fmt.Sprintf("The buyer confirmed delivery. %.4f SUI was added to your balance.", updated.Amount))
	return updated, nil
}

func (s *escrowService) paySeller(ctx context.Context, e *domain.Escrow) error {
	_, err := s.balances.Payout(ctx, ports.PayoutInput{
		UserID:    e.SellerID,
		Reference: PayoutReference(e.ID),
		AmountSui: e.Amount,
		Source:    domain.SourcePayout,
	})
	if err != nil {
		s.log.Error().Err(err).Str("escrow_id", e.ID).Str("seller_id", e.SellerID).Msg("seller payout not credited; left for the reconciler")
		return fmt.Errorf("pay seller: %w", err)
	}
	return nil
}

// PayoutReference is the ledger reference of an escrow's seller payout.
func PayoutReference(escrowID string) string {
	return "escrow:" + escrowID
}

func (s *escrowService) ListForUser(ctx context.Context, userID string) ([]*domain.Escrow, error) {
	list, err := s.escrows.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	if list == nil {
		list = []*domain.Escrow{}
	}
	return list, nil
}

func (s *escrowService) amountFor(ctx context.Context, p *domain.Product) (float64, error) {
	if p.PriceSui > 0 {
		return p.PriceSui, nil
	}
	conv, err := s.converter.ConvertToSui(ctx, p.Price, listingCurrency)
	if err != nil {
		return 0, err
	}
	if conv.AmountSui <= 0 {
		return 0, fmt.Errorf("%w: product has no price", domain.ErrValidation)
	}
	return conv.AmountSui, nil
}

func (s *escrowService) notify(ctx context.Context, userID, text string) {
	n := &domain.Notification{UserID: userID, Kind: domain.NotificationEscrow, Text: text, CreatedAt: s.now()}
	if err := s.notes.Insert(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("escrow notification not stored")
	}
}
