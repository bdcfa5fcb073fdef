package domain

import (
	"errors"
	"testing"
)

func TestFlowState_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to FlowState
		want     bool
	}{
		{FlowIdle, FlowSubmitting, true},
		{FlowIdle, FlowFailure, true},
		{FlowIdle, FlowSuccess, false},
		{FlowIdle, FlowAwaitingOTP, false},
		{FlowSubmitting, FlowSuccess, true},
		{FlowSubmitting, FlowFailure, true},
		{FlowSubmitting, FlowAwaitingOTP, true},
		{FlowSubmitting, FlowIdle, true},
		{FlowAwaitingOTP, FlowSubmitting, true},
		{FlowAwaitingOTP, FlowIdle, true},
		{FlowAwaitingOTP, FlowSuccess, false},
		{FlowSuccess, FlowSubmitting, true},
		{FlowSuccess, FlowAwaitingOTP, false},
		{FlowFailure, FlowSubmitting, true},
		{FlowFailure, FlowSuccess, false},
		{FlowFailure, FlowAwaitingOTP, false},
		{FlowState("bogus"), FlowIdle, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSignInFlow_Transition(t *testing.T) {
	f := &SignInFlow{State: FlowIdle}

	if err := f.Transition(FlowIdle); err != nil {
		t.Fatalf("same state: %v", err)
	}
	if err := f.Transition(FlowSuccess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("idle -> success: expected ErrInvalidTransition, got %v", err)
	}
	if f.State != FlowIdle {
		t.Fatalf("rejected transition changed state to %q", f.State)
	}
	for _, next := range []FlowState{FlowSubmitting, FlowAwaitingOTP, FlowSubmitting, FlowSuccess} {
		if err := f.Transition(next); err != nil {
			t.Fatalf("-> %s: %v", next, err)
		}
	}
}

func TestSignInFlow_DiscardOTP(t *testing.T) {
	f := &SignInFlow{State: FlowAwaitingOTP, Phone: "+2348012345678", VerificationID: "v1"}
	if !f.AwaitingOTP() {
		t.Fatal("expected flow to await an otp")
	}
	f.DiscardOTP()
	if f.AwaitingOTP() || f.Phone != "" || f.State != FlowIdle {
		t.Fatalf("flow after discard = %+v", f)
	}
}
