package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// ctxSession extracts the session injected by the Auth middleware and
// fails fast before any service call when it is missing or has no user.
func ctxSession(c echo.Context) (*domain.Session, error) {
	s, _ := c.Get("session").(*domain.Session)
	if s == nil || s.UserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return s, nil
}

// bindAndValidate decodes the request into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

// queryFloat parses an optional float query parameter.
func queryFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return &v, nil
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}
