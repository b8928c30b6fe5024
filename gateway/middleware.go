package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// loginRateLimit caps login attempts per client IP. A limiter failure lets
// the request through.
func (g *Gateway) loginRateLimit() gin.HandlerFunc {
	limit := int64(g.config.RateLimit.LoginAttempts)
	window := g.config.RateLimit.LoginWindow

	return func(c *gin.Context) {
		if g.services.Limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := loginLimitKey(c.ClientIP())
		n, err := g.services.Limiter.Hit(c.Request.Context(), key, window)
		if err != nil {
			g.logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if n > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many login attempts, please try again later",
			})
			return
		}
		c.Next()
	}
}

func loginLimitKey(ip string) string {
	return "ratelimit:login:" + ip
}
