package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

type stubValidator struct {
	sessions map[string]*domain.Session
	err      error
}

func (s *stubValidator) Validate(_ context.Context, token string) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	if sess, ok := s.sessions[token]; ok {
		return sess, nil
	}
	return nil, domain.ErrInvalidToken
}

func newValidator() *stubValidator {
	return &stubValidator{sessions: map[string]*domain.Session{
		"good-token": {SessionID: "sess-1", UserID: "user-1", Role: domain.RoleUser},
	}}
}

func runAuth(t *testing.T, v SessionValidator, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Auth(v)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Auth(newValidator())(func(c echo.Context) error {
		called = true
		s, _ := c.Get("session").(*domain.Session)
		if s == nil || s.SessionID != "sess-1" {
			t.Fatalf("session not set: %+v", s)
		}
		if c.Get("user_id") != "user-1" {
			t.Fatalf("user_id not set")
		}
		if c.Get("role") != domain.RoleUser {
			t.Fatalf("role not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, called := runAuth(t, newValidator(), req)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec, called := runAuth(t, newValidator(), req)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer signed-out-token")
	rec, called := runAuth(t, newValidator(), req)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_HTMLRedirectsToSignIn(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard?tab=escrows", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec, called := runAuth(t, newValidator(), req)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	want := "/sign-in?next=%2Fv1%2Fdashboard%3Ftab%3Descrows"
	if got := rec.Header().Get("Location"); got != want {
		t.Fatalf("expected Location %q, got %q", want, got)
	}
}

func TestAuthMiddleware_StoreOutageIsNotUnauthorized(t *testing.T) {
	v := &stubValidator{err: fmt.Errorf("get session: %w", domain.ErrRemote)}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	c := e.NewContext(req, httptest.NewRecorder())

	err := Auth(v)(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected remote error to propagate, got %v", err)
	}
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/session/stream?access_token=good-token", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec, called := runAuth(t, newValidator(), req)
	if !called {
		t.Fatalf("next not called, status %d", rec.Code)
	}
}

func TestAuthMiddleware_QueryTokenIgnoredOutsideWebsocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/profile?access_token=good-token", nil)
	rec, called := runAuth(t, newValidator(), req)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
