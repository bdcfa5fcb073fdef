package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// SignInPath is where browsers without a session are sent.
const SignInPath = "/sign-in"

// SessionValidator resolves a bearer token to a live session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
}

// Auth validates the session token and injects the session into context
// under "session", plus "user_id" and "role".
//
// The token is read from the Authorization header. Websocket upgrades may
// pass it as ?access_token= instead, since browsers cannot set headers on
// them. Requests without a valid session get 401, or a 303 to SignInPath
// when they accept HTML.
func Auth(sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return unauthenticated(c, "missing authorization header")
			}

			s, err := sessions.Validate(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrRemote) {
					return err
				}
				return unauthenticated(c, "invalid session")
			}

			c.Set("session", s)
			c.Set("user_id", s.UserID)
			c.Set("role", s.Role)

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request()) {
			if t := c.QueryParam("access_token"); t != "" {
				return t, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthenticated(c echo.Context, msg string) error {
	if wantsHTML(c.Request()) {
		target := SignInPath + "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
		return c.Redirect(http.StatusSeeOther, target)
	}
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}
