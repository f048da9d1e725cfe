package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/pkg/response"
)

// RateLimiter 固定窗口计数器
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按用户（未认证时按 IP）限制单个路由的调用频率
// 用于同步日历源等会触发外部请求的接口；limiter 为 nil 或出错时降级放行
func RateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		subject := c.GetString("user_id")
		if subject == "" {
			subject = c.ClientIP()
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), c.FullPath()+":"+subject, limit, window)
		if err == nil && !allowed {
			response.TooManyRequests(c, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
