package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type stubIdentities struct {
	mu      sync.Mutex
	byID    map[string]*domain.Identity
	seq     int
	findErr error // if set, every Find* returns this error
}

func newStubIdentities() *stubIdentities {
	return &stubIdentities{byID: make(map[string]*domain.Identity)}
}

func (r *stubIdentities) Create(_ context.Context, id *domain.Identity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if (id.Email != "" && existing.Email == id.Email) || (id.Phone != "" && existing.Phone == id.Phone) {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	clone := *id
	clone.ID = fmt.Sprintf("user-%d", r.seq)
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubIdentities) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, id := range r.byID {
		if match(id) {
			clone := *id
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubIdentities) FindByID(_ context.Context, userID string) (*domain.Identity, error) {
	return r.find(func(id *domain.Identity) bool { return id.ID == userID })
}

func (r *stubIdentities) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	return r.find(func(id *domain.Identity) bool { return email != "" && id.Email == email })
}

func (r *stubIdentities) FindByPhone(_ context.Context, phone string) (*domain.Identity, error) {
	return r.find(func(id *domain.Identity) bool { return phone != "" && id.Phone == phone })
}

func (r *stubIdentities) FindByProvider(_ context.Context, provider, subject string) (*domain.Identity, error) {
	return r.find(func(id *domain.Identity) bool {
		for _, p := range id.Providers {
			if p.Provider == provider && p.Subject == subject {
				return true
			}
		}
		return false
	})
}

func (r *stubIdentities) Update(_ context.Context, userID string, upd ports.IdentityUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if upd.PasswordHash != nil {
		id.PasswordHash = *upd.PasswordHash
	}
	if upd.EmailVerified != nil {
		id.EmailVerified = *upd.EmailVerified
	}
	if upd.DisplayName != nil {
		id.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		id.PhotoURL = *upd.PhotoURL
	}
	if upd.Email != nil {
		id.Email = *upd.Email
	}
	return nil
}

func (r *stubIdentities) LinkProvider(_ context.Context, userID string, link domain.LinkedProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	id.Providers = append(id.Providers, link)
	return nil
}

type stubUsernames struct {
	mu   sync.Mutex
	recs map[string]*domain.UsernameRecord
}

func newStubUsernames() *stubUsernames {
	return &stubUsernames{recs: make(map[string]*domain.UsernameRecord)}
}

func (r *stubUsernames) Create(_ context.Context, rec *domain.UsernameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[rec.Username]; ok {
		return domain.ErrConflict
	}
	clone := *rec
	r.recs[rec.Username] = &clone
	return nil
}

func (r *stubUsernames) Find(_ context.Context, username string) (*domain.UsernameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

type stubTokens struct {
	mu     sync.Mutex
	values map[string]string
}

func newStubTokens() *stubTokens { return &stubTokens{values: make(map[string]string)} }

func (s *stubTokens) Put(_ context.Context, kind, token, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[kind+":"+token] = value
	return nil
}

func (s *stubTokens) Get(_ context.Context, kind, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[kind+":"+token]
	if !ok {
		return "", domain.ErrInvalidToken
	}
	return v, nil
}

func (s *stubTokens) Delete(_ context.Context, kind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, kind+":"+token)
	return nil
}

var otpInText = regexp.MustCompile(`\b\d{6}\b`)

type stubSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubSMS) SendSMS(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubSMS) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// lastCode extracts the code from the most recent message.
func (s *stubSMS) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return otpInText.FindString(s.sent[len(s.sent)-1])
}

type sentMail struct {
	To, Subject, Body string
}

type stubMail struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *stubMail) SendMail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]+)`)

// lastToken returns the token of the most recent mail whose subject contains
// subject.
func (m *stubMail) lastToken(subject string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if strings.Contains(m.sent[i].Subject, subject) {
			if match := tokenInLink.FindStringSubmatch(m.sent[i].Body); match != nil {
				return match[1]
			}
		}
	}
	return ""
}

type stubOAuth struct {
	profiles map[string]*ports.OAuthProfile // by access token
}

func (o *stubOAuth) Verify(_ context.Context, provider, accessToken string) (*ports.OAuthProfile, error) {
	p, ok := o.profiles[accessToken]
	if !ok || p.Provider != provider {
		return nil, domain.ErrInvalidCredentials
	}
	clone := *p
	return &clone, nil
}

type stubFlows struct {
	mu     sync.Mutex
	flows  map[string]domain.SignInFlow
	claims map[string]bool
}

func newStubFlows() *stubFlows {
	return &stubFlows{flows: make(map[string]domain.SignInFlow), claims: make(map[string]bool)}
}

func (s *stubFlows) Get(_ context.Context, flowID string) (*domain.SignInFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[flowID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (s *stubFlows) Save(_ context.Context, flow *domain.SignInFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = *flow
	return nil
}

func (s *stubFlows) Delete(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowID)
	delete(s.claims, flowID)
	return nil
}

func (s *stubFlows) ClaimDispatch(_ context.Context, flowID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[flowID] {
		return false, nil
	}
	s.claims[flowID] = true
	return true, nil
}

func (s *stubFlows) ReleaseDispatch(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, flowID)
	return nil
}

type stubRegistry struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{sessions: make(map[string]domain.Session)}
}

func (r *stubRegistry) Save(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = *s
	return nil
}

func (r *stubRegistry) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *stubRegistry) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
