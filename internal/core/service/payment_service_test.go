package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type stubGateway struct {
	inits         []ports.PaymentInit
	verifications map[string]*ports.PaymentVerification
	err           error
}

func (g *stubGateway) Initialize(_ context.Context, in ports.PaymentInit) (*ports.PaymentSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.inits = append(g.inits, in)
	return &ports.PaymentSession{Reference: in.Reference, AuthorizationURL: "https://pay.test/" + in.Reference}, nil
}

func (g *stubGateway) Verify(_ context.Context, reference string) (*ports.PaymentVerification, error) {
	if g.err != nil {
		return nil, g.err
	}
	v, ok := g.verifications[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

type paymentHarness struct {
	svc      ports.PaymentService
	gateway  *stubGateway
	profiles *stubProfiles
	chain    *stubChain
}

func newPaymentHarness() *paymentHarness {
	h := &paymentHarness{
		gateway: &stubGateway{verifications: map[string]*ports.PaymentVerification{}},
		profiles: newStubProfiles(
			&domain.UserProfile{UserID: "u1", Email: "a@b.co", SuiWalletAddress: buyerWallet},
			&domain.UserProfile{UserID: "u2"},
		),
		chain: &stubChain{},
	}
	balances := NewBalanceService(h.profiles, newStubDeposits(), fixedConverter{rate: testRate}, newStubDedup(), &stubNotes{}, zerolog.Nop())
	h.svc = NewPaymentService(h.gateway, balances, h.profiles, h.chain, zerolog.Nop())
	return h
}

func TestPaymentService_Initialize(t *testing.T) {
	h := newPaymentHarness()
	s, err := h.svc.Initialize(context.Background(), "u1", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(s.Reference, "tx_ref_") {
		t.Errorf("reference = %q", s.Reference)
	}
	in := h.gateway.inits[0]
	if in.UserID != "u1" || in.Email != "a@b.co" || in.Currency != "NGN" || in.Amount != 5000 {
		t.Errorf("gateway init = %+v", in)
	}

	if _, err := h.svc.Initialize(context.Background(), "u1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero amount: expected ErrValidation, got %v", err)
	}
	if _, err := h.svc.Initialize(context.Background(), "u2", 100); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("no email: expected ErrValidation, got %v", err)
	}
}

func TestPaymentService_VerifyAndDeposit_CreditsOnce(t *testing.T) {
	h := newPaymentHarness()
	h.gateway.verifications["tx_ref_1"] = &ports.PaymentVerification{Reference: "tx_ref_1", Status: "success", Amount: 4000, Currency: "NGN", UserID: "u1"}
	ctx := context.Background()

	res, err := h.svc.VerifyAndDeposit(ctx, "u1", "tx_ref_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Balance != 2 || res.AlreadyApplied {
		t.Errorf("result = %+v", res)
	}

	// the webhook arrives after the client callback
	res, err = h.svc.VerifyAndDeposit(ctx, "", "tx_ref_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AlreadyApplied || h.profiles.balance("u1") != 2 {
		t.Errorf("replay = %+v, balance %v", res, h.profiles.balance("u1"))
	}
}

func TestPaymentService_VerifyAndDeposit_Rejections(t *testing.T) {
	h := newPaymentHarness()
	h.gateway.verifications["abandoned"] = &ports.PaymentVerification{Status: "abandoned", Amount: 100, UserID: "u1"}
	h.gateway.verifications["theirs"] = &ports.PaymentVerification{Status: "success", Amount: 100, UserID: "u2"}
	h.gateway.verifications["anonymous"] = &ports.PaymentVerification{Status: "success", Amount: 100}
	ctx := context.Background()

	if _, err := h.svc.VerifyAndDeposit(ctx, "u1", "abandoned"); !errors.Is(err, domain.ErrPaymentNotSuccessful) {
		t.Errorf("abandoned: expected ErrPaymentNotSuccessful, got %v", err)
	}
	if _, err := h.svc.VerifyAndDeposit(ctx, "u1", "theirs"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other user's payment: expected ErrForbidden, got %v", err)
	}
	if _, err := h.svc.VerifyAndDeposit(ctx, "", "anonymous"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("no owner: expected ErrValidation, got %v", err)
	}
	if _, err := h.svc.VerifyAndDeposit(ctx, "u1", " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank reference: expected ErrValidation, got %v", err)
	}

	h.gateway.err = domain.ErrRemote
	if _, err := h.svc.VerifyAndDeposit(ctx, "u1", "x"); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("gateway down: expected ErrRemote, got %v", err)
	}
}

func TestPaymentService_WalletDeposit(t *testing.T) {
	h := newPaymentHarness()
	ctx := context.Background()

	res, err := h.svc.WalletDeposit(ctx, "u1", 1.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Balance != 1.25 || res.Deposit.Source != domain.SourceSui || res.Deposit.Reference != "digest-1" {
		t.Errorf("result = %+v / %+v", res, res.Deposit)
	}
	call := h.chain.calls[0]
	if call.Module != treasuryModule || call.Arguments[1] != ToMist(1.25) {
		t.Errorf("move call = %+v", call)
	}

	if _, err := h.svc.WalletDeposit(ctx, "u2", 1); !errors.Is(err, domain.ErrWalletMissing) {
		t.Errorf("expected ErrWalletMissing, got %v", err)
	}
	if _, err := h.svc.WalletDeposit(ctx, "u1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
