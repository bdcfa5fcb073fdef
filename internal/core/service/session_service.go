package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// sessionClaims is the JWT body handed to clients. The registry entry named
// by SessionID stays authoritative; the token is only a signed pointer to it.
type sessionClaims struct {
	SessionID     string `json:"sid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues, validates and revokes sessions and publishes every
// change on the session's topic.
type SessionManager struct {
	registry ports.SessionRegistry
	notifier ports.Notifier
	secret   []byte
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionManager(registry ports.SessionRegistry, notifier ports.Notifier, jwtSecret string, ttl time.Duration, log zerolog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		registry: registry,
		notifier: notifier,
		secret:   []byte(jwtSecret),
		ttl:      ttl,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SessionTopic is the notifier topic carrying changes of one session.
func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}

func (m *SessionManager) Issue(ctx context.Context, id *domain.Identity) (*domain.Session, string, error) {
	session := domain.NewSession(uuid.NewString(), id, m.now(), m.ttl)
	if err := m.registry.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("save session: %w", err)
	}

	claims := sessionClaims{
		SessionID:     session.SessionID,
		Email:         session.Email,
		EmailVerified: session.EmailVerified,
		Name:          session.DisplayName,
		Role:          session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	m.publish(ctx, session.SessionID, session)
	return session, token, nil
}

// Validate checks the token signature and that the session is still
// registered and unexpired.
func (m *SessionManager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrInvalidToken
	}

	session, err := m.registry.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Expired(m.now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// SignOut removes the session and tells every subscriber it is gone.
func (m *SessionManager) SignOut(ctx context.Context, sessionID string) error {
	if err := m.registry.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	m.publish(ctx, sessionID, nil)
	m.log.Info().Str("session_id", sessionID).Msg("signed out")
	return nil
}

// Subscribe delivers the current session (nil when signed out) and then every
// change until ctx is cancelled or the session ends. Expiry is delivered as
// nil at ExpiresAt even when nobody signs out.
func (m *SessionManager) Subscribe(ctx context.Context, sessionID string) (<-chan *domain.Session, error) {
	changes, err := m.notifier.Subscribe(ctx, SessionTopic(sessionID))
	if err != nil {
		return nil, fmt.Errorf("subscribe session: %w", err)
	}

	current, err := m.registry.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		current = nil
	} else if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if current != nil && current.Expired(m.now()) {
		current = nil
	}

	out := make(chan *domain.Session, 1)
	go func() {
		defer close(out)

		var (
			timer  *time.Timer
			expiry <-chan time.Time
		)
		arm := func(s *domain.Session) {
			if timer != nil {
				timer.Stop()
			}
			expiry = nil
			if s != nil {
				timer = time.NewTimer(s.ExpiresAt.Sub(m.now()))
				expiry = timer.C
			}
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		send := func(s *domain.Session) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		arm(current)
		if !send(current) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-expiry:
				expiry = nil
				if !send(nil) {
					return
				}
			case payload, ok := <-changes:
				if !ok {
					return
				}
				var next *domain.Session
				if err := json.Unmarshal(payload, &next); err != nil {
					m.log.Warn().Err(err).Str("session_id", sessionID).Msg("dropping malformed session event")
					continue
				}
				arm(next)
				if !send(next) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *SessionManager) publish(ctx context.Context, sessionID string, s *domain.Session) {
	payload, err := json.Marshal(s)
	if err != nil {
		m.log.Error().Err(err).Str("session_id", sessionID).Msg("encode session event")
		return
	}
	if err := m.notifier.Publish(ctx, SessionTopic(sessionID), payload); err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("session event not published")
	}
}
