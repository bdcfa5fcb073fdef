package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/handler"
	"github.com/suiichiba/marketplace/internal/core/domain"
)

type tokenSessions struct {
	byToken map[string]*domain.Session
}

func (s *tokenSessions) Issue(context.Context, *domain.Identity) (*domain.Session, string, error) {
	return nil, "", nil
}

func (s *tokenSessions) Validate(_ context.Context, token string) (*domain.Session, error) {
	if sess, ok := s.byToken[token]; ok {
		return sess, nil
	}
	return nil, domain.ErrSessionExpired
}

func (s *tokenSessions) SignOut(context.Context, string) error { return nil }

func (s *tokenSessions) Subscribe(context.Context, string) (<-chan *domain.Session, error) {
	ch := make(chan *domain.Session)
	close(ch)
	return ch, nil
}

type fixedSweeper int

func (f fixedSweeper) Sweep(context.Context) (int, error) { return int(f), nil }

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Dependencies{
		Sessions: &tokenSessions{byToken: map[string]*domain.Session{
			"user-token":  {SessionID: "s1", UserID: "u1", Role: domain.RoleUser},
			"admin-token": {SessionID: "s2", UserID: "a1", Role: domain.RoleAdmin},
		}},
		Reconciler:    fixedSweeper(3),
		SignInLimiter: allowAll{},
		HealthChecks: []handler.HealthCheck{
			{Name: "mongodb", Check: func(context.Context) error { return nil }},
		},
	}, zerolog.Nop())
}

func TestRouter(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		accept string
		code   int
	}{
		{"liveness", http.MethodGet, "/health", "", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"protected without token", http.MethodGet, "/v1/dashboard", "", "application/json", http.StatusUnauthorized},
		{"protected from browser", http.MethodGet, "/v1/dashboard", "", "text/html", http.StatusSeeOther},
		{"expired token", http.MethodGet, "/v1/profile", "stale", "", http.StatusUnauthorized},
		{"admin route as user", http.MethodPost, "/v1/admin/reconcile", "user-token", "", http.StatusForbidden},
		{"admin route as admin", http.MethodPost, "/v1/admin/reconcile", "admin-token", "", http.StatusAccepted},
		{"unknown route", http.MethodGet, "/v1/nope", "", "", http.StatusNotFound},
		{"swagger disabled", http.MethodGet, "/swagger/index.html", "", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_AdminReconcileReportsCount(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/reconcile", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"count":3`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
