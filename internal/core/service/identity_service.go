package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const minPasswordLength = 6

var (
	tenDigitPhone   = regexp.MustCompile(`^\d{10}$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)
)

// IdentityConfig tunes token lifetimes and the links mailed to users.
type IdentityConfig struct {
	PublicBaseURL string
	OTPLength     int
	OTPTTL        time.Duration
	LinkTTL       time.Duration
	ResetTTL      time.Duration
	VerifyTTL     time.Duration
}

func (c *IdentityConfig) applyDefaults() {
	if c.OTPLength <= 0 {
		c.OTPLength = 6
	}
	if c.OTPTTL <= 0 {
		c.OTPTTL = 5 * time.Minute
	}
	if c.LinkTTL <= 0 {
		c.LinkTTL = time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	if c.VerifyTTL <= 0 {
		c.VerifyTTL = 24 * time.Hour
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// otpRecord is what the token store keeps for a dispatched code. Only the
// bcrypt hash of the code is stored.
type otpRecord struct {
	Phone    string `json:"phone"`
	CodeHash string `json:"code_hash"`
}

// IdentityService is the authentication provider: password, phone OTP,
// e-mail link and OAuth sign-in over the identities collection, plus the
// account maintenance operations.
type IdentityService struct {
	identities ports.IdentityRepository
	usernames  ports.UsernameRepository
	tokens     ports.TokenStore
	sms        ports.SMSSender
	mail       ports.MailSender
	oauth      ports.OAuthVerifier
	throttle   *KeyedLimiter
	cfg        IdentityConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewIdentityService(
	identities ports.IdentityRepository,
	usernames ports.UsernameRepository,
	tokens ports.TokenStore,
	sms ports.SMSSender,
	mail ports.MailSender,
	oauth ports.OAuthVerifier,
	throttle *KeyedLimiter,
	cfg IdentityConfig,
	log zerolog.Logger,
) *IdentityService {
	cfg.applyDefaults()
	return &IdentityService{
		identities: identities,
		usernames:  usernames,
		tokens:     tokens,
		sms:        sms,
		mail:       mail,
		oauth:      oauth,
		throttle:   throttle,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := s.identities.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if id.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return id, nil
}

func (s *IdentityService) ResolveUsername(ctx context.Context, username string) (string, error) {
	rec, err := s.usernames.Find(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return rec.Email, nil
}

func (s *IdentityService) SendOTP(ctx context.Context, phone string) (string, error) {
	if s.throttle != nil && !s.throttle.Allow(phone) {
		metrics.OTPDispatchTotal.WithLabelValues("throttled").Inc()
		return "", domain.ErrRateLimited
	}

	code, err := randomDigits(s.cfg.OTPLength)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	rec, err := json.Marshal(otpRecord{Phone: phone, CodeHash: string(hash)})
	if err != nil {
		return "", fmt.Errorf("encode otp: %w", err)
	}

	verificationID := uuid.NewString()
	if err := s.tokens.Put(ctx, ports.TokenOTP, verificationID, string(rec), s.cfg.OTPTTL); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	text := fmt.Sprintf("Your Sui-Ichiba verification code is %s. It expires in %d minutes.", code, int(s.cfg.OTPTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, phone, text); err != nil {
		_ = s.tokens.Delete(ctx, ports.TokenOTP, verificationID)
		metrics.OTPDispatchTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("send otp: %w", err)
	}

	metrics.OTPDispatchTotal.WithLabelValues("sent").Inc()
	s.log.Info().Str("verification_id", verificationID).Msg("otp dispatched")
	return verificationID, nil
}

func (s *IdentityService) VerifyOTP(ctx context.Context, verificationID, code string) (*domain.Identity, error) {
	raw, err := s.tokens.Get(ctx, ports.TokenOTP, verificationID)
	if errors.Is(err, domain.ErrInvalidToken) {
		return nil, domain.ErrOTPExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode otp: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		return nil, domain.ErrInvalidOTP
	}
	if err := s.tokens.Delete(ctx, ports.TokenOTP, verificationID); err != nil {
		s.log.Warn().Err(err).Str("verification_id", verificationID).Msg("failed to delete used otp")
	}

	id, err := s.identities.FindByPhone(ctx, rec.Phone)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	now := s.now()
	return s.identities.Create(ctx, &domain.Identity{
		Phone:     rec.Phone,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *IdentityService) SendSignInLink(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	token, err := s.issueToken(ctx, ports.TokenSignInLink, email, s.cfg.LinkTTL)
	if err != nil {
		return err
	}
	link := s.link("/auth/email-link/complete", token)
	body := fmt.Sprintf("Click the link below to sign in to Sui-Ichiba:\n\n%s\n\nThe link expires in %s.", link, s.cfg.LinkTTL)
	if err := s.mail.SendMail(ctx, email, "Sign in to Sui-Ichiba", body); err != nil {
		_ = s.tokens.Delete(ctx, ports.TokenSignInLink, token)
		return fmt.Errorf("send sign-in link: %w", err)
	}
	return nil
}

func (s *IdentityService) CompleteSignInLink(ctx context.Context, token string) (*domain.Identity, error) {
	email, err := s.consumeToken(ctx, ports.TokenSignInLink, token)
	if err != nil {
		return nil, err
	}

	id, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			verified := true
			if err := s.identities.Update(ctx, id.ID, ports.IdentityUpdate{EmailVerified: &verified}); err != nil {
				return nil, fmt.Errorf("mark email verified: %w", err)
			}
			id.EmailVerified = true
		}
		return id, nil
	case errors.Is(err, domain.ErrUserNotFound):
		now := s.now()
		return s.identities.Create(ctx, &domain.Identity{
			Email:         email,
			EmailVerified: true,
			Role:          domain.RoleUser,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	default:
		return nil, err
	}
}

func (s *IdentityService) SignInWithOAuth(ctx context.Context, provider, accessToken string) (*domain.Identity, error) {
	profile, err := s.oauth.Verify(ctx, provider, accessToken)
	if err != nil {
		return nil, err
	}

	id, err := s.identities.FindByProvider(ctx, profile.Provider, profile.Subject)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	link := domain.LinkedProvider{Provider: profile.Provider, Subject: profile.Subject}
	email := domain.NormalizeEmail(profile.Email)
	if email != "" && profile.EmailVerified {
		existing, err := s.identities.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.identities.LinkProvider(ctx, existing.ID, link); err != nil {
				return nil, fmt.Errorf("link provider: %w", err)
			}
			existing.Providers = append(existing.Providers, link)
			return existing, nil
		case !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}
	}

	now := s.now()
	return s.identities.Create(ctx, &domain.Identity{
		Email:         email,
		EmailVerified: profile.EmailVerified,
		DisplayName:   profile.Name,
		PhotoURL:      profile.PictureURL,
		Role:          domain.RoleUser,
		Providers:     []domain.LinkedProvider{link},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// SignUp creates an e-mail/password identity, optionally with a username and
// a phone number.
func (s *IdentityService) SignUp(ctx context.Context, in ports.SignUpInput) (*domain.Identity, error) {
	email := domain.NormalizeEmail(in.Email)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	phone := strings.TrimSpace(in.Phone)

	if err := (domain.EmailCredential{Email: email, Password: in.Password}).Validate(); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("%w: passwords don't match", domain.ErrValidation)
	}
	if phone != "" && !tenDigitPhone.MatchString(phone) {
		return nil, fmt.Errorf("%w: please enter a valid 10-digit phone number", domain.ErrValidation)
	}
	if username != "" {
		if !usernamePattern.MatchString(username) {
			return nil, fmt.Errorf("%w: username must be 3-30 lowercase letters, digits, '.' or '_'", domain.ErrValidation)
		}
		if _, err := s.usernames.Find(ctx, username); err == nil {
			return nil, domain.ErrUsernameTaken
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("check username: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id, err := s.identities.Create(ctx, &domain.Identity{
		Email:        email,
		Username:     username,
		Phone:        phone,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if username != "" {
		err := s.usernames.Create(ctx, &domain.UsernameRecord{Username: username, Email: email, UserID: id.ID})
		if err != nil {
			s.log.Error().Err(err).Str("user_id", id.ID).Str("username", username).Msg("identity created without username record")
			if errors.Is(err, domain.ErrConflict) {
				return nil, domain.ErrUsernameTaken
			}
			return nil, fmt.Errorf("save username: %w", err)
		}
	}

	if err := s.SendEmailVerification(ctx, id.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", id.ID).Msg("verification mail not sent")
	}
	return id, nil
}

func (s *IdentityService) SendPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := (domain.PasswordlessCredential{Email: email}).Validate(); err != nil {
		return err
	}
	id, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := s.issueToken(ctx, ports.TokenPasswordReset, id.ID, s.cfg.ResetTTL)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Reset your Sui-Ichiba password here:\n\n%s", s.link("/reset-password", token))
	if err := s.mail.SendMail(ctx, email, "Reset your password", body); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	userID, err := s.consumeToken(ctx, ports.TokenPasswordReset, token)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *IdentityService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	id, err := s.identities.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if id.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(currentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *IdentityService) SendEmailVerification(ctx context.Context, userID string) error {
	id, err := s.identities.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if id.Email == "" {
		return fmt.Errorf("%w: account has no email address", domain.ErrValidation)
	}
	if id.EmailVerified {
		return fmt.Errorf("%w: email already verified", domain.ErrConflict)
	}
	token, err := s.issueToken(ctx, ports.TokenEmailVerify, id.ID, s.cfg.VerifyTTL)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Confirm your email address for Sui-Ichiba:\n\n%s", s.link("/auth/verify-email", token))
	if err := s.mail.SendMail(ctx, id.Email, "Verify your email", body); err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	return nil
}

func (s *IdentityService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.consumeToken(ctx, ports.TokenEmailVerify, token)
	if err != nil {
		return err
	}
	verified := true
	return s.identities.Update(ctx, userID, ports.IdentityUpdate{EmailVerified: &verified})
}

func (s *IdentityService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	h := string(hash)
	return s.identities.Update(ctx, userID, ports.IdentityUpdate{PasswordHash: &h})
}

func (s *IdentityService) issueToken(ctx context.Context, kind, value string, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := s.tokens.Put(ctx, kind, token, value, ttl); err != nil {
		return "", fmt.Errorf("store %s token: %w", kind, err)
	}
	return token, nil
}

// consumeToken returns the value stored under a single-use token and deletes it.
func (s *IdentityService) consumeToken(ctx context.Context, kind, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", domain.ErrInvalidToken
	}
	value, err := s.tokens.Get(ctx, kind, token)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Delete(ctx, kind, token); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Msg("failed to delete used token")
	}
	return value, nil
}

func (s *IdentityService) link(path, token string) string {
	return s.cfg.PublicBaseURL + path + "?token=" + url.QueryEscape(token)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	return nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
