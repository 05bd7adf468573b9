package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a fixed-window counter per client IP and route, kept in Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *logrus.Logger
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Middleware lets requests through when Redis misbehaves; the limiter is not an auth control.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.client == nil {
			c.Next()
			return
		}
		key := "ratelimit:" + c.FullPath() + ":" + c.ClientIP()
		ctx := c.Request.Context()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			rl.warn(err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
				rl.warn(err)
			}
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) warn(err error) {
	if rl.logger != nil {
		rl.logger.WithFields(logrus.Fields{"field": "RateLimiter"}).Warn("rate limiter unavailable: " + err.Error())
	}
}
