package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fin-research-api/internal/config"
	"fin-research-api/internal/infrastructure/persistence/redis"
	"fin-research-api/pkg/logger"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 加接口维度限流
// 限流器自身故障时放行，避免 Redis 抖动放大为全站不可用
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = 120
	}

	return func(c *gin.Context) {
		key := redis.BuildClientRateLimitKey(c.ClientIP(), c.FullPath())

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Minute)
		if err != nil {
			logger.Warn(c.Request.Context(), "限流检查失败，放行请求", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}

		c.Next()
	}
}
