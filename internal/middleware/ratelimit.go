package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"medisecure-go/internal/config"
	"medisecure-go/pkg/log"
)

// RateLimit 基于 Redis INCR+EXPIRE 的固定窗口限流，按客户端 IP 计数。
// Redis 不可用时放行请求，限流只作保护不作闸门。
func RateLimit(redisClient *redis.Client, cfg config.RateLimitConfig) gin.HandlerFunc {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), time.Now().Unix()/int64(cfg.WindowSeconds))
		count, err := redisClient.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Warnf("[RateLimit] Redis 计数失败，放行请求: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			_ = redisClient.Expire(c.Request.Context(), key, window).Err()
		}

		if count > int64(cfg.Requests) {
			c.Header("Retry-After", fmt.Sprintf("%d", cfg.WindowSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
