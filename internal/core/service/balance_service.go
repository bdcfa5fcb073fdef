package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// DepositDedup is the fast-path idempotency store (Redis). The ledger's
// unique reference stays authoritative; a dedup failure only costs a
// ledger round-trip.
type DepositDedup interface {
	IsApplied(ctx context.Context, reference string) (bool, error)
	MarkApplied(ctx context.Context, reference string) error
}

type balanceService struct {
	profiles  ports.ProfileRepository
	deposits  ports.DepositRepository
	converter ports.Converter
	dedup     DepositDedup
	notes     ports.NotificationRepository
	log       zerolog.Logger
	now       func() time.Time
}

// NewBalanceService returns a BalanceService implementation. dedup and notes
// may be nil.
func NewBalanceService(
	profiles ports.ProfileRepository,
	deposits ports.DepositRepository,
	converter ports.Converter,
	dedup DepositDedup,
	notes ports.NotificationRepository,
	log zerolog.Logger,
) ports.BalanceService {
	return &balanceService{
		profiles:  profiles,
		deposits:  deposits,
		converter: converter,
		dedup:     dedup,
		notes:     notes,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ApplyDeposit credits a confirmed external payment exactly once per
// reference.
func (s *balanceService) ApplyDeposit(ctx context.Context, in ports.DepositInput) (*ports.DepositResult, error) {
	if err := validateDeposit(in); err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = domain.SourceManual
	}

	// 1. Fast path: the reference was already credited.
	if s.dedup != nil {
		applied, err := s.dedup.IsApplied(ctx, in.Reference)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("reference", in.Reference).Msg("dedup check failed, using ledger")
		case applied:
			metrics.DepositsDedupTotal.WithLabelValues("hit").Inc()
			return s.replay(ctx, in.Reference)
		default:
			metrics.DepositsDedupTotal.WithLabelValues("miss").Inc()
		}
	}

	// 2. Convert before touching the ledger; no rate means no entry.
	conv, err := s.converter.ConvertToSui(ctx, in.Amount, in.Currency)
	if err != nil {
		metrics.DepositsTotal.WithLabelValues(source, "failed").Inc()
		return nil, fmt.Errorf("apply deposit: %w", err)
	}

	// 3. Record the pending ledger entry, or pick up the existing one.
	dep := &domain.Deposit{
		Reference:        in.Reference,
		UserID:           in.UserID,
		Source:           source,
		ExternalAmount:   in.Amount,
		ExternalCurrency: strings.ToUpper(in.Currency),
		Rate:             conv.Rate,
		AmountSui:        conv.AmountSui,
		Status:           domain.DepositPending,
		CreatedAt:        s.now(),
	}
	dep, err = s.record(ctx, dep)
	if err != nil {
		return nil, err
	}
	if dep.Status == domain.DepositCredited {
		s.markApplied(ctx, in.Reference)
		return s.replay(ctx, in.Reference)
	}

	return s.credit(ctx, dep)
}

// Redrive retries a pending ledger entry. It is what the reconciler calls.
func (s *balanceService) Redrive(ctx context.Context, reference string) (*ports.DepositResult, error) {
	dep, err := s.deposits.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("redrive deposit: %w", err)
	}
	if dep.Status == domain.DepositCredited {
		return s.replay(ctx, reference)
	}
	return s.credit(ctx, dep)
}

// credit applies a pending entry to the balance. The increment is keyed by
// the reference, so a retry after an error whose outcome is unknown cannot
// credit twice. The entry is marked credited only once the balance holds the
// credit; until then it stays pending and the reconciler picks it up.
func (s *balanceService) credit(ctx context.Context, dep *domain.Deposit) (*ports.DepositResult, error) {
	now := s.now()
	balance, applied, err := s.profiles.CreditOnce(ctx, dep.UserID, dep.Reference, dep.AmountSui)
	if err != nil {
		metrics.DepositCreditFailuresTotal.WithLabelValues(dep.Source).Inc()
		metrics.DepositsTotal.WithLabelValues(dep.Source, "failed").Inc()
		s.log.Error().Err(err).
			Str("reference", dep.Reference).
			Str("user_id", dep.UserID).
			Float64("amount_sui", dep.AmountSui).
			Msg("payment confirmed but balance not credited; deposit left pending")
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := s.deposits.MarkCredited(ctx, dep.Reference, now); err != nil {
		s.log.Warn().Err(err).Str("reference", dep.Reference).Msg("balance credited but ledger entry still pending")
	}
	s.markApplied(ctx, dep.Reference)

	dep.Status = domain.DepositCredited
	dep.CreditedAt = &now
	if !applied {
		metrics.DepositsTotal.WithLabelValues(dep.Source, "replay").Inc()
		s.log.Debug().Str("reference", dep.Reference).Msg("deposit already applied")
		return &ports.DepositResult{Deposit: dep, Balance: balance, AlreadyApplied: true}, nil
	}

	if dep.Source != domain.SourcePayout && dep.Source != domain.SourceRefund {
		paidAt := now
		if _, err := s.profiles.Update(ctx, dep.UserID, ports.ProfileUpdate{LastPaymentAt: &paidAt}); err != nil {
			s.log.Warn().Err(err).Str("user_id", dep.UserID).Msg("last payment time not recorded")
		}
		s.notify(ctx, dep)
	}

	metrics.DepositsTotal.WithLabelValues(dep.Source, "credited").Inc()
	s.log.Info().
		Str("reference", dep.Reference).
		Str("user_id", dep.UserID).
		Float64("amount_sui", dep.AmountSui).
		Float64("balance", balance).
		Msg("deposit credited")

	return &ports.DepositResult{Deposit: dep, Balance: balance}, nil
}

// record inserts a pending ledger entry, or returns the entry already stored
// under the same reference for the same user.
func (s *balanceService) record(ctx context.Context, dep *domain.Deposit) (*domain.Deposit, error) {
	err := s.deposits.Insert(ctx, dep)
	if err == nil {
		return dep, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("record deposit: %w", err)
	}
	existing, err := s.deposits.FindByReference(ctx, dep.Reference)
	if err != nil {
		return nil, fmt.Errorf("load deposit: %w", err)
	}
	if existing.UserID != dep.UserID {
		return nil, fmt.Errorf("%w: reference belongs to another user", domain.ErrConflict)
	}
	return existing, nil
}

func (s *balanceService) replay(ctx context.Context, reference string) (*ports.DepositResult, error) {
	dep, err := s.deposits.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load deposit: %w", err)
	}
	profile, err := s.profiles.FindByID(ctx, dep.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	metrics.DepositsTotal.WithLabelValues(dep.Source, "replay").Inc()
	s.log.Debug().Str("reference", reference).Msg("deposit already applied")
	return &ports.DepositResult{Deposit: dep, Balance: profile.Balance, AlreadyApplied: true}, nil
}

func (s *balanceService) markApplied(ctx context.Context, reference string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.MarkApplied(ctx, reference); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("dedup mark failed")
	}
}

func (s *balanceService) notify(ctx context.Context, dep *domain.Deposit) {
	if s.notes == nil {
		return
	}
	n := &domain.Notification{
		UserID:    dep.UserID,
		Kind:      domain.NotificationDeposit,
		Text:      fmt.Sprintf("Deposit of %.4f SUI credited to your balance.", dep.AmountSui),
		CreatedAt: s.now(),
	}
	if err := s.notes.Insert(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("user_id", dep.UserID).Msg("deposit notification not stored")
	}
}

// Debit removes amount from the user's balance, refusing to go negative.
func (s *balanceService) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	balance, err := s.profiles.DecrementBalance(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	return balance, nil
}

// Payout records an internal SUI credit and applies it. Retrying with the same
// reference is safe.
func (s *balanceService) Payout(ctx context.Context, in ports.PayoutInput) (*ports.DepositResult, error) {
	switch {
	case in.UserID == "":
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	case strings.TrimSpace(in.Reference) == "":
		return nil, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	case in.AmountSui <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	dep := &domain.Deposit{
		Reference:        in.Reference,
		UserID:           in.UserID,
		Source:           in.Source,
		ExternalAmount:   in.AmountSui,
		ExternalCurrency: domain.CurrencySUI,
		Rate:             1,
		AmountSui:        in.AmountSui,
		Status:           domain.DepositPending,
		CreatedAt:        s.now(),
	}
	dep, err := s.record(ctx, dep)
	if err != nil {
		return nil, err
	}
	if dep.Status == domain.DepositCredited {
		return s.replay(ctx, in.Reference)
	}
	return s.credit(ctx, dep)
}

func (s *balanceService) ListDeposits(ctx context.Context, userID string) ([]*domain.Deposit, error) {
	return s.deposits.ListByUser(ctx, userID, 50)
}

func validateDeposit(in ports.DepositInput) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	case strings.TrimSpace(in.Reference) == "":
		return fmt.Errorf("%w: reference is required", domain.ErrValidation)
	case in.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	case strings.TrimSpace(in.Currency) == "":
		return fmt.Errorf("%w: currency is required", domain.ErrValidation)
	}
	return nil
}
