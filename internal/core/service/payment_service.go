package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	paymentCurrency      = "NGN"
	paymentReferenceBase = "tx_ref_"
	paymentStatusSuccess = "success"
	treasuryModule       = "treasury"
)

type paymentService struct {
	gateway  ports.PaymentGateway
	balances ports.BalanceService
	profiles ports.ProfileRepository
	chain    ports.ChainClient
	log      zerolog.Logger
}

// NewPaymentService returns the payment callback layer: card payments through
// the gateway and direct SUI deposits through the chain client.
func NewPaymentService(
	gateway ports.PaymentGateway,
	balances ports.BalanceService,
	profiles ports.ProfileRepository,
	chain ports.ChainClient,
	log zerolog.Logger,
) ports.PaymentService {
	return &paymentService{
		gateway:  gateway,
		balances: balances,
		profiles: profiles,
		chain:    chain,
		log:      log,
	}
}

// Initialize opens a gateway payment for amount NGN and returns what the
// client needs to show the payment sheet.
func (s *paymentService) Initialize(ctx context.Context, userID string, amount float64) (*ports.PaymentSession, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("initialize payment: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: an email address is required for card payments", domain.ErrValidation)
	}

	ref := paymentReferenceBase + uuid.NewString()
	session, err := s.gateway.Initialize(ctx, ports.PaymentInit{
		Reference: ref,
		UserID:    userID,
		Email:     profile.Email,
		Amount:    amount,
		Currency:  paymentCurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize payment: %w", err)
	}
	s.log.Info().Str("reference", ref).Str("user_id", userID).Float64("amount", amount).Msg("payment initialized")
	return session, nil
}

// VerifyAndDeposit asks the gateway about reference and, when it was paid,
// credits the user. userID may be empty for gateway callbacks; the user is
// then taken from the transaction metadata.
func (s *paymentService) VerifyAndDeposit(ctx context.Context, userID, reference string) (*ports.DepositResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}

	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if v.Status != paymentStatusSuccess {
		s.log.Info().Str("reference", reference).Str("status", v.Status).Msg("payment not successful")
		return nil, fmt.Errorf("%w: status %q", domain.ErrPaymentNotSuccessful, v.Status)
	}

	owner := v.UserID
	switch {
	case owner == "" && userID == "":
		return nil, fmt.Errorf("%w: payment carries no user", domain.ErrValidation)
	case owner == "":
		owner = userID
	case userID != "" && owner != userID:
		return nil, domain.ErrForbidden
	}

	currency := v.Currency
	if currency == "" {
		currency = paymentCurrency
	}
	res, err := s.balances.ApplyDeposit(ctx, ports.DepositInput{
		UserID:    owner,
		Amount:    v.Amount,
		Currency:  currency,
		Reference: reference,
		Source:    domain.SourcePaystack,
	})
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	return res, nil
}

// WalletDeposit moves amountSui from the user's wallet to the treasury and
// credits the balance, keyed by the transaction digest.
func (s *paymentService) WalletDeposit(ctx context.Context, userID string, amountSui float64) (*ports.DepositResult, error) {
	if amountSui <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wallet deposit: %w", err)
	}
	if profile.SuiWalletAddress == "" {
		return nil, domain.ErrWalletMissing
	}

	tx, err := s.chain.MoveCall(ctx, ports.MoveCall{
		Module:    treasuryModule,
		Function:  fnTransferDeposits,
		Arguments: []any{profile.SuiWalletAddress, ToMist(amountSui)},
		GasBudget: defaultEscrowGas,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet deposit: %w", err)
	}

	res, err := s.balances.ApplyDeposit(ctx, ports.DepositInput{
		UserID:    userID,
		Amount:    amountSui,
		Currency:  domain.CurrencySUI,
		Reference: tx.Digest,
		Source:    domain.SourceSui,
	})
	if err != nil {
		s.log.Error().Err(err).Str("tx_digest", tx.Digest).Str("user_id", userID).Msg("wallet transfer submitted but not credited")
		return nil, fmt.Errorf("wallet deposit: %w", err)
	}
	return res, nil
}
