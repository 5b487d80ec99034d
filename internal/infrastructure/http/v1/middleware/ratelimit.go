package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"gstledger/internal/core/apperror"
	"gstledger/pkg/logger"
)

// RateLimit throttles requests per client IP with the given limiter.
// A limiter store failure lets the request through.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		lc, err := l.Get(c.Request.Context(), ip)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

		if lc.Reached {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "ip", ip, "limit", lc.Limit)
			WriteError(c, apperror.NewRateLimited(lc.Limit))
			return
		}

		c.Next()
	}
}
