package middleware

import (
	"log"
	"net/http"
	"time"

	"payflow/internal/caching"
	"payflow/internal/common"

	"github.com/labstack/echo/v4"
)

// RateLimit caps requests per client IP using the shared redis counter. The
// limiter fails open: if redis is unreachable the request proceeds.
func RateLimit(cache caching.CacheService, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + ":" + c.RealIP()
			limited, err := cache.IsRateLimited(c.Request().Context(), key, limit, window)
			if err != nil {
				log.Printf("rate limit check failed for %s: %v", key, err)
				return next(c)
			}
			if limited {
				return common.SendError(c, http.StatusTooManyRequests, common.CodeRateLimited,
					"Too many requests, slow down", nil)
			}
			return next(c)
		}
	}
}
