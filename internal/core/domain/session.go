package domain

import "time"

// Session is the authenticated identity held by the session registry and
// mirrored to the client as a signed token.
type Session struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	DisplayName   string    `json:"display_name,omitempty"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Role          string    `json:"role"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// NewSession derives a session for identity valid for ttl from now.
func NewSession(sessionID string, id *Identity, now time.Time, ttl time.Duration) *Session {
	return &Session{
		SessionID:     sessionID,
		UserID:        id.ID,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		DisplayName:   id.DisplayName,
		PhotoURL:      id.PhotoURL,
		Role:          id.Role,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
}
