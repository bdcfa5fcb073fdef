package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	buyerWallet  = "0x1111111111111111111111111111111111111111111111111111111111111111"
	sellerWallet = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

type escrowHarness struct {
	svc      ports.EscrowService
	balances ports.BalanceService
	deposits *stubDeposits
	escrows  *stubEscrows
	products *stubProducts
	profiles *stubProfiles
	chain    *stubChain
	notes    *stubNotes
	product  *domain.Product
}

func newEscrowHarness(t *testing.T, buyerBalance float64) *escrowHarness {
	t.Helper()
	h := &escrowHarness{
		escrows:  newStubEscrows(),
		products: newStubProducts(),
		profiles: newStubProfiles(
			&domain.UserProfile{UserID: "buyer", Balance: buyerBalance, SuiWalletAddress: buyerWallet},
			&domain.UserProfile{UserID: "seller", SuiWalletAddress: sellerWallet},
		),
		chain:    &stubChain{},
		notes:    &stubNotes{},
		deposits: newStubDeposits(),
	}
	h.product, _ = h.products.Create(context.Background(), &domain.Product{Name: "Basket", Price: 10000, PriceSui: 5, OwnerUserID: "seller"})
	h.balances = NewBalanceService(h.profiles, h.deposits, fixedConverter{rate: testRate}, nil, nil, zerolog.Nop())
	h.svc = NewEscrowService(h.escrows, h.products, h.profiles, h.balances, fixedConverter{rate: testRate}, h.chain, h.notes, zerolog.Nop())
	return h
}

func TestEscrowService_CreateAndConfirm(t *testing.T) {
	h := newEscrowHarness(t, 8)
	ctx := context.Background()

	e, err := h.svc.Create(ctx, "buyer", h.product.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Status != domain.EscrowActive || e.Amount != 5 || e.TxDigest == "" {
		t.Fatalf("escrow = %+v", e)
	}
	if got := h.profiles.balance("buyer"); got != 3 {
		t.Errorf("buyer balance = %v, want 3", got)
	}
	call := h.chain.calls[0]
	if call.Function != fnCreateEscrow || call.Arguments[0] != sellerWallet || call.Arguments[1] != ToMist(5) {
		t.Errorf("move call = %+v", call)
	}

	if _, err := h.svc.Confirm(ctx, "seller", e.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("seller confirm: expected ErrForbidden, got %v", err)
	}
	done, err := h.svc.Confirm(ctx, "buyer", e.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if done.Status != domain.EscrowCompleted || done.ConfirmTxDigest == "" {
		t.Errorf("confirmed escrow = %+v", done)
	}
	if got := h.profiles.balance("seller"); got != 5 {
		t.Errorf("seller balance = %v, want 5", got)
	}
	if st := h.deposits.status(PayoutReference(e.ID)); st != domain.DepositCredited {
		t.Errorf("payout ledger status = %q, want credited", st)
	}
	if _, err := h.svc.Confirm(ctx, "buyer", e.ID); err != nil {
		t.Errorf("second confirm: %v", err)
	}
	if got := h.profiles.balance("seller"); got != 5 {
		t.Errorf("seller balance after second confirm = %v, want 5", got)
	}
	if len(h.chain.calls) != 2 {
		t.Errorf("move calls = %d, want 2", len(h.chain.calls))
	}
	if n := h.notes.forUser("seller"); len(n) != 2 {
		t.Errorf("seller notifications = %d, want 2", len(n))
	}
}

func TestEscrowService_Confirm_FailedPayoutIsRedriven(t *testing.T) {
	h := newEscrowHarness(t, 8)
	ctx := context.Background()

	e, err := h.svc.Create(ctx, "buyer", h.product.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	h.profiles.mu.Lock()
	h.profiles.lostAck = domain.ErrRemote
	h.profiles.mu.Unlock()

	if _, err := h.svc.Confirm(ctx, "buyer", e.ID); !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if st := h.deposits.status(PayoutReference(e.ID)); st != domain.DepositPending {
		t.Fatalf("payout ledger status = %q, want pending", st)
	}
	stored, _ := h.escrows.FindByID(ctx, e.ID)
	if stored.Status != domain.EscrowCompleted {
		t.Fatalf("escrow status = %q, want completed", stored.Status)
	}

	h.profiles.mu.Lock()
	h.profiles.lostAck = nil
	h.profiles.mu.Unlock()

	if _, err := h.balances.Redrive(ctx, PayoutReference(e.ID)); err != nil {
		t.Fatalf("redrive: %v", err)
	}
	if _, err := h.svc.Confirm(ctx, "buyer", e.ID); err != nil {
		t.Fatalf("confirm again: %v", err)
	}
	if got := h.profiles.balance("seller"); got != 5 {
		t.Errorf("seller balance = %v, want exactly one payout of 5", got)
	}
	if st := h.deposits.status(PayoutReference(e.ID)); st != domain.DepositCredited {
		t.Errorf("payout ledger status = %q, want credited", st)
	}
}

func TestEscrowService_Create_InsufficientBalance(t *testing.T) {
	h := newEscrowHarness(t, 1)
	_, err := h.svc.Create(context.Background(), "buyer", h.product.ID)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(h.chain.calls) != 0 {
		t.Error("move call submitted without funds")
	}
}

func TestEscrowService_Create_ChainFailureRefundsBuyer(t *testing.T) {
	h := newEscrowHarness(t, 8)
	h.chain.err = domain.ErrRemote

	_, err := h.svc.Create(context.Background(), "buyer", h.product.ID)
	if !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if got := h.profiles.balance("buyer"); got != 8 {
		t.Errorf("buyer balance = %v, want refund to 8", got)
	}
	refunds, _ := h.deposits.ListByUser(context.Background(), "buyer", 10)
	if len(refunds) != 1 || refunds[0].Source != domain.SourceRefund || refunds[0].Status != domain.DepositCredited {
		t.Errorf("buyer ledger = %+v, want one credited refund", refunds)
	}
	list, _ := h.svc.ListForUser(context.Background(), "buyer")
	if len(list) != 1 || list[0].Status != domain.EscrowFailed || list[0].FailureReason == "" {
		t.Errorf("escrows = %+v, want one failed record", list)
	}
}

func TestEscrowService_Create_Rejections(t *testing.T) {
	h := newEscrowHarness(t, 8)
	ctx := context.Background()

	if _, err := h.svc.Create(ctx, "seller", h.product.ID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("own product: expected ErrValidation, got %v", err)
	}
	if _, err := h.svc.Create(ctx, "buyer", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing product: expected ErrNotFound, got %v", err)
	}

	empty := ""
	_, _ = h.profiles.Update(ctx, "seller", ports.ProfileUpdate{SuiWalletAddress: &empty})
	if _, err := h.svc.Create(ctx, "buyer", h.product.ID); !errors.Is(err, domain.ErrWalletMissing) {
		t.Errorf("no seller wallet: expected ErrWalletMissing, got %v", err)
	}
}

func TestEscrowService_Create_ConvertsWhenNoSuiPrice(t *testing.T) {
	h := newEscrowHarness(t, 8)
	p, _ := h.products.Create(context.Background(), &domain.Product{Name: "Pot", Price: 4000, OwnerUserID: "seller"})

	e, err := h.svc.Create(context.Background(), "buyer", p.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Amount != 2 {
		t.Errorf("amount = %v, want 2", e.Amount)
	}
}

func TestToMist(t *testing.T) {
	if got := ToMist(1.5); got != 1_500_000_000 {
		t.Errorf("ToMist(1.5) = %d", got)
	}
	if got := ToMist(0.000000001); got != 1 {
		t.Errorf("ToMist(1e-9) = %d", got)
	}
}
