package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	msgOTPSent        = "OTP sent to your phone."
	msgOTPPending     = "A code was already sent to your phone. Enter it to continue."
	msgLinkSent       = "Sign-in link sent to your email."
	msgSignedIn       = "Signed in."
	msgNetworkFailure = "Network error, please try again."
)

// AuthService runs the multi-mode sign-in flow and the account operations
// built around it. Sign-in state (including OTP dispatch state) is kept in
// the flow store, so repeated submissions of the same flow are safe.
type AuthService struct {
	provider ports.IdentityProvider
	accounts ports.AccountManager
	sessions ports.SessionIssuer
	flows    ports.FlowStore
	profiles ports.ProfileRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	provider ports.IdentityProvider,
	accounts ports.AccountManager,
	sessions ports.SessionIssuer,
	flows ports.FlowStore,
	profiles ports.ProfileRepository,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		accounts: accounts,
		sessions: sessions,
		flows:    flows,
		profiles: profiles,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate processes one submission of the sign-in form for flowID.
// Failures the user can act on are reported in the outcome; the returned
// error is reserved for the flow store itself being unavailable.
func (s *AuthService) Authenticate(ctx context.Context, flowID string, cred domain.Credential) (*ports.AuthOutcome, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: credential is required", domain.ErrValidation)
	}

	flow, err := s.loadFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if flow.Mode != cred.Mode() {
		s.discardOTP(ctx, flow)
		flow.Mode = cred.Mode()
	}

	if err := cred.Validate(); err != nil {
		return s.fail(ctx, flow, err)
	}

	if c, ok := cred.(domain.PhoneCredential); ok {
		return s.authenticatePhone(ctx, flow, c)
	}

	if err := flow.Transition(domain.FlowSubmitting); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	var id *domain.Identity
	switch c := cred.(type) {
	case domain.EmailCredential:
		id, err = s.provider.SignInWithPassword(ctx, domain.NormalizeEmail(c.Email), c.Password)
	case domain.UsernameCredential:
		var email string
		email, err = s.provider.ResolveUsername(ctx, strings.ToLower(strings.TrimSpace(c.Username)))
		if err == nil {
			id, err = s.provider.SignInWithPassword(ctx, email, c.Password)
		}
	case domain.PasswordlessCredential:
		if err := s.provider.SendSignInLink(ctx, domain.NormalizeEmail(c.Email)); err != nil {
			return s.fail(ctx, flow, err)
		}
		if err := flow.Transition(domain.FlowIdle); err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		if err := s.saveFlow(ctx, flow); err != nil {
			return nil, err
		}
		metrics.AuthAttemptsTotal.WithLabelValues(string(flow.Mode), "link_sent").Inc()
		return &ports.AuthOutcome{FlowID: flow.ID, Mode: flow.Mode, State: flow.State, Message: msgLinkSent}, nil
	case domain.SocialCredential:
		if strings.TrimSpace(c.AccessToken) == "" {
			err = domain.ErrPopupDismissed
		} else {
			id, err = s.provider.SignInWithOAuth(ctx, c.Provider, c.AccessToken)
		}
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnsupportedMode, cred.Mode())
	}
	if err != nil {
		return s.fail(ctx, flow, err)
	}
	return s.succeed(ctx, flow, id)
}

// authenticatePhone runs the two-step OTP sign-in. The first submission for a
// number dispatches a code; later submissions without a code never dispatch
// again while the verification is pending. Submissions racing on the same
// flow are serialised by the dispatch claim in the flow store.
func (s *AuthService) authenticatePhone(ctx context.Context, flow *domain.SignInFlow, c domain.PhoneCredential) (*ports.AuthOutcome, error) {
	phone := domain.NormalizePhone(c.Phone)
	code := strings.TrimSpace(c.OTP)

	if flow.AwaitingOTP() && flow.Phone != phone {
		s.discardOTP(ctx, flow)
	}

	if !flow.AwaitingOTP() {
		if code != "" {
			return s.fail(ctx, flow, fmt.Errorf("%w: request a code before entering one", domain.ErrInvalidOTP))
		}
		claimed, err := s.flows.ClaimDispatch(ctx, flow.ID)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		if !claimed {
			return &ports.AuthOutcome{FlowID: flow.ID, Mode: flow.Mode, State: domain.FlowAwaitingOTP, Message: msgOTPPending}, nil
		}
		if err := flow.Transition(domain.FlowSubmitting); err != nil {
			s.releaseDispatch(ctx, flow.ID)
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		verificationID, err := s.provider.SendOTP(ctx, phone)
		if err != nil {
			s.releaseDispatch(ctx, flow.ID)
			return s.fail(ctx, flow, err)
		}
		flow.Phone = phone
		flow.VerificationID = verificationID
		flow.DispatchCount++
		if err := flow.Transition(domain.FlowAwaitingOTP); err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		if err := s.saveFlow(ctx, flow); err != nil {
			return nil, err
		}
		metrics.AuthAttemptsTotal.WithLabelValues(string(flow.Mode), string(flow.State)).Inc()
		return &ports.AuthOutcome{FlowID: flow.ID, Mode: flow.Mode, State: flow.State, Message: msgOTPSent}, nil
	}

	if code == "" {
		return &ports.AuthOutcome{FlowID: flow.ID, Mode: flow.Mode, State: flow.State, Message: msgOTPPending}, nil
	}

	id, err := s.provider.VerifyOTP(ctx, flow.VerificationID, code)
	if err != nil {
		if errors.Is(err, domain.ErrOTPExpired) {
			s.discardOTP(ctx, flow)
		}
		return s.fail(ctx, flow, err)
	}
	if err := flow.Transition(domain.FlowSubmitting); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	flow.VerificationID = ""
	s.releaseDispatch(ctx, flow.ID)
	return s.succeed(ctx, flow, id)
}

// discardOTP drops a pending verification and frees the flow for a new
// dispatch.
func (s *AuthService) discardOTP(ctx context.Context, flow *domain.SignInFlow) {
	wasPhone := flow.Mode == domain.ModePhone
	flow.DiscardOTP()
	if wasPhone {
		s.releaseDispatch(ctx, flow.ID)
	}
}

func (s *AuthService) releaseDispatch(ctx context.Context, flowID string) {
	if err := s.flows.ReleaseDispatch(ctx, flowID); err != nil {
		s.log.Warn().Err(err).Str("flow_id", flowID).Msg("otp dispatch claim not released")
	}
}

func (s *AuthService) succeed(ctx context.Context, flow *domain.SignInFlow, id *domain.Identity) (*ports.AuthOutcome, error) {
	session, token, err := s.establish(ctx, id)
	if err != nil {
		return s.fail(ctx, flow, err)
	}

	if err := flow.Transition(domain.FlowSuccess); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.saveFlow(ctx, flow); err != nil {
		s.log.Warn().Err(err).Str("flow_id", flow.ID).Msg("sign-in succeeded but flow state was not saved")
	}
	metrics.AuthAttemptsTotal.WithLabelValues(string(flow.Mode), string(flow.State)).Inc()
	s.log.Info().Str("user_id", id.ID).Str("mode", string(flow.Mode)).Msg("signed in")

	return &ports.AuthOutcome{
		FlowID:  flow.ID,
		Mode:    flow.Mode,
		State:   flow.State,
		Message: msgSignedIn,
		Session: session,
		Token:   token,
	}, nil
}

// fail records a failed submission. A pending OTP verification survives the
// failure so the user can retype the code.
func (s *AuthService) fail(ctx context.Context, flow *domain.SignInFlow, cause error) (*ports.AuthOutcome, error) {
	kind, message := classifyFailure(cause)

	next := domain.FlowFailure
	if flow.VerificationID != "" {
		next = domain.FlowAwaitingOTP
	}
	if err := flow.Transition(next); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.saveFlow(ctx, flow); err != nil {
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues(string(flow.Mode), string(kind)).Inc()
	if kind == domain.FailureNetwork {
		s.log.Error().Err(cause).Str("flow_id", flow.ID).Str("mode", string(flow.Mode)).Msg("sign-in failed")
	} else {
		s.log.Debug().Err(cause).Str("flow_id", flow.ID).Str("mode", string(flow.Mode)).Msg("sign-in rejected")
	}

	return &ports.AuthOutcome{
		FlowID:  flow.ID,
		Mode:    flow.Mode,
		State:   domain.FlowFailure,
		Message: message,
		Failure: &ports.AuthFailure{Kind: kind, Message: message},
	}, nil
}

// establish ensures the marketplace profile exists and issues a session.
func (s *AuthService) establish(ctx context.Context, id *domain.Identity) (*domain.Session, string, error) {
	now := s.now()
	if _, err := s.profiles.Ensure(ctx, &domain.UserProfile{
		UserID:      id.ID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, "", fmt.Errorf("ensure profile: %w", err)
	}

	session, token, err := s.sessions.Issue(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}
	return session, token, nil
}

func (s *AuthService) loadFlow(ctx context.Context, flowID string) (*domain.SignInFlow, error) {
	if flowID != "" {
		flow, err := s.flows.Get(ctx, flowID)
		if err == nil {
			return flow, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return &domain.SignInFlow{ID: uuid.NewString(), State: domain.FlowIdle, UpdatedAt: s.now()}, nil
}

func (s *AuthService) saveFlow(ctx context.Context, flow *domain.SignInFlow) error {
	flow.UpdatedAt = s.now()
	if err := s.flows.Save(ctx, flow); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// SignUp creates the account, its profile and a first session.
func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput) (*ports.AuthOutcome, error) {
	id, err := s.accounts.SignUp(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	session, token, err := s.establish(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.log.Info().Str("user_id", id.ID).Msg("account created")

	mode := domain.ModeEmail
	if in.Username != "" {
		mode = domain.ModeUsername
	}
	return &ports.AuthOutcome{
		FlowID:  uuid.NewString(),
		Mode:    mode,
		State:   domain.FlowSuccess,
		Message: "Account created.",
		Session: session,
		Token:   token,
	}, nil
}

// CompleteEmailLink finishes a passwordless sign-in started elsewhere.
func (s *AuthService) CompleteEmailLink(ctx context.Context, token string) (*ports.AuthOutcome, error) {
	id, err := s.accounts.CompleteSignInLink(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("complete sign-in link: %w", err)
	}
	session, bearer, err := s.establish(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete sign-in link: %w", err)
	}
	metrics.AuthAttemptsTotal.WithLabelValues(string(domain.ModePasswordless), string(domain.FlowSuccess)).Inc()
	return &ports.AuthOutcome{
		FlowID:  uuid.NewString(),
		Mode:    domain.ModePasswordless,
		State:   domain.FlowSuccess,
		Message: msgSignedIn,
		Session: session,
		Token:   bearer,
	}, nil
}

func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	return s.accounts.SendPasswordReset(ctx, email)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.accounts.ResetPassword(ctx, token, newPassword)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return s.accounts.ChangePassword(ctx, userID, currentPassword, newPassword)
}

func (s *AuthService) SendEmailVerification(ctx context.Context, userID string) error {
	return s.accounts.SendEmailVerification(ctx, userID)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.accounts.VerifyEmail(ctx, token)
}

// classifyFailure maps an error to the failure kind shown to the user.
func classifyFailure(err error) (domain.FailureKind, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return domain.FailureValidation, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.FailureInvalidCredential, "Invalid credentials."
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.FailureUserNotFound, "No account found for these details."
	case errors.Is(err, domain.ErrPopupDismissed):
		return domain.FailurePopupDismissed, "Sign-in popup was closed before completing."
	case errors.Is(err, domain.ErrOTPExpired):
		return domain.FailureInvalidOTP, "The code has expired. Request a new one."
	case errors.Is(err, domain.ErrInvalidOTP):
		return domain.FailureInvalidOTP, "Invalid verification code."
	case errors.Is(err, domain.ErrRateLimited):
		return domain.FailureRateLimited, "Too many codes requested. Try again later."
	default:
		return domain.FailureNetwork, msgNetworkFailure
	}
}
