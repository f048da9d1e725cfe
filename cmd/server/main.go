package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/api/handler"
	"deadline-desk/backend/internal/api/router"
	"deadline-desk/backend/internal/app"
	applogger "deadline-desk/backend/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("DESK_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.App.Timezone),
	)

	// 3. 装配依赖（数据库 / Redis / 协作者 / Service / 调度器）
	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("初始化失败", zap.Error(err))
	}
	defer a.Close()

	// 4. 执行数据库迁移
	if err := a.Migrate(); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 启动周期驱动
	if cfg.Scheduler.Enabled {
		// 上次进程崩溃可能遗留卡死的 generating 作业
		if n, err := a.Service.Work.RecoverStuck(context.Background()); err != nil {
			logger.Warn("恢复卡死作业失败", zap.Error(err))
		} else if n > 0 {
			logger.Info("已恢复卡死作业", zap.Int("count", n))
		}
		a.Scheduler.Start()
	} else {
		logger.Info("周期驱动已禁用（scheduler.enabled=false）")
	}

	// 6. 初始化路由
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(a.Service, a.HealthChecks()...)
	engine := router.Setup(cfg, h, a.JWT, a.RateLimiter(), logger)

	// 7. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		a.Scheduler.Stop(ctx)
	}

	logger.Info("服务器已关闭")
}
