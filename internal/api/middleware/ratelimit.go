package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// Limiter is a keyed token bucket, such as service.KeyedLimiter.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests from a client IP that has used up its bucket.
func RateLimit(l Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "60")
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}
