package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/api/handler"
	"deadline-desk/backend/internal/api/middleware"
	"deadline-desk/backend/pkg/jwt"
)

const (
	maxBodyBytes   = 1 << 20
	syncRateLimit  = 5
	syncRateWindow = 10 * time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时同步接口不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(corsConfig(cfg.Server.CORS.AllowOrigins)))
	r.Use(middleware.Hardening(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Health)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		v1.GET("/me", h.User.GetProfile)
		v1.PUT("/me", h.User.UpdateProfile)

		subjects := v1.Group("/subjects")
		{
			subjects.GET("", h.Subject.ListSubjects)
			subjects.PUT("/:id/instructor", h.Subject.SetInstructor)
			subjects.POST("/:id/materials", h.Subject.AddMaterial)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", h.Subject.ListTemplates)
			templates.POST("", h.Subject.UploadTemplate)
			templates.PUT("/:id/default", h.Subject.SetDefaultTemplate)
		}

		deadlines := v1.Group("/deadlines")
		{
			deadlines.POST("", h.Deadline.CreateDeadline)
			deadlines.GET("", h.Deadline.ListDeadlines)
			deadlines.GET("/:id", h.Deadline.GetDeadline)
			deadlines.PUT("/:id/completed", h.Deadline.SetCompleted)
			deadlines.DELETE("/:id", h.Deadline.DeleteDeadline)
		}

		works := v1.Group("/works")
		{
			works.POST("", h.Work.CreateWork)
			works.GET("", h.Work.ListWorks)
			works.GET("/:id", h.Work.GetWork)
			works.POST("/:id/generate", h.Work.StartGeneration)
			works.POST("/:id/confirm", h.Work.ConfirmWork)
			works.POST("/:id/regenerate", h.Work.RegenerateWork)
			works.PUT("/:id/schedule", h.Work.RescheduleWork)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("/reminders", h.Settings.GetReminderSettings)
			settings.PUT("/reminders", h.Settings.UpdateReminderSettings)
			settings.GET("/works", h.Settings.GetWorkSettings)
			settings.PUT("/works", h.Settings.UpdateWorkSettings)
		}

		schedule := v1.Group("/schedule")
		{
			schedule.PUT("/feed", h.Schedule.SetFeed)
			schedule.POST("/sync", middleware.RateLimit(limiter, syncRateLimit, syncRateWindow), h.Schedule.SyncSchedule)
			schedule.GET("/patterns", h.Schedule.ListPatterns)
			schedule.DELETE("/patterns", h.Schedule.ClearPatterns)
			schedule.GET("/export", h.Schedule.ExportPatterns)
		}
	}

	return r
}

// corsConfig 未配置来源时放开全部来源（不携带凭据）
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowOrigins = nil
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	}
	return c
}
