package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/pkg/response"
)

// HealthCheck 单个依赖的健康检查；Required=false 时失败只标记降级
type HealthCheck struct {
	Name     string
	Required bool
	Ping     func(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler 创建 HealthHandler
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 检查数据库 / Redis 等依赖
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			deps[check.Name] = err.Error()
			if check.Required {
				status = "down"
			} else if status == "ok" {
				status = "degraded"
			}
			continue
		}
		deps[check.Name] = "ok"
	}

	if status == "down" {
		response.ErrorWithData(c, http.StatusServiceUnavailable, 50300, "依赖不可用", gin.H{"status": status, "deps": deps})
		return
	}
	response.OK(c, gin.H{"status": status, "deps": deps})
}
