package domain

import (
	"fmt"
	"time"
)

// FlowState is the lifecycle state of one sign-in attempt.
type FlowState string

const (
	FlowIdle        FlowState = "idle"
	FlowSubmitting  FlowState = "submitting"
	FlowSuccess     FlowState = "success"
	FlowFailure     FlowState = "failure"
	FlowAwaitingOTP FlowState = "awaiting_otp"
)

// validFlowTransitions is the sign-in state machine. Success and Failure are
// terminal for a submission but a flow may be reused, so both lead back to
// Submitting. A submission rejected before it is sent moves straight to
// Failure; a sign-in link sent returns the flow to Idle.
var validFlowTransitions = map[FlowState][]FlowState{
	FlowIdle:        {FlowSubmitting, FlowFailure},
	FlowSubmitting:  {FlowSuccess, FlowFailure, FlowAwaitingOTP, FlowIdle},
	FlowAwaitingOTP: {FlowSubmitting, FlowIdle, FlowFailure},
	FlowSuccess:     {FlowSubmitting, FlowIdle, FlowFailure},
	FlowFailure:     {FlowSubmitting, FlowIdle},
}

// CanTransitionTo reports whether a flow in state s may move to next.
func (s FlowState) CanTransitionTo(next FlowState) bool {
	for _, allowed := range validFlowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SignInFlow is the server-held state of a multi-step sign-in. The OTP
// dispatch state lives here, not in the client, so a resubmission cannot
// trigger a second SMS.
type SignInFlow struct {
	ID             string     `json:"id"`
	Mode           SignInMode `json:"mode"`
	State          FlowState  `json:"state"`
	Phone          string     `json:"phone,omitempty"`
	VerificationID string     `json:"verification_id,omitempty"`
	DispatchCount  int        `json:"dispatch_count"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Transition moves the flow to next. Staying in the current state is always
// allowed.
func (f *SignInFlow) Transition(next FlowState) error {
	if f.State == next {
		return nil
	}
	if !f.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: sign-in flow %s -> %s", ErrInvalidTransition, f.State, next)
	}
	f.State = next
	return nil
}

// AwaitingOTP reports whether an OTP has been dispatched and not yet used.
func (f *SignInFlow) AwaitingOTP() bool {
	return f.State == FlowAwaitingOTP && f.VerificationID != ""
}

// DiscardOTP drops any dispatched verification and returns the flow to Idle.
func (f *SignInFlow) DiscardOTP() {
	f.Phone = ""
	f.VerificationID = ""
	f.State = FlowIdle
}

// FailureKind classifies a failed sign-in for the caller.
type FailureKind string

const (
	FailureValidation        FailureKind = "validation"
	FailureInvalidCredential FailureKind = "invalid_credential"
	FailureUserNotFound      FailureKind = "user_not_found"
	FailureNetwork           FailureKind = "network_error"
	FailurePopupDismissed    FailureKind = "popup_dismissed"
	FailureInvalidOTP        FailureKind = "invalid_otp"
	FailureRateLimited       FailureKind = "rate_limited"
)
