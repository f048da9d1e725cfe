package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/api/handler"
	"deadline-desk/backend/internal/api/middleware"
	"deadline-desk/backend/internal/integration"
	"deadline-desk/backend/internal/repository"
	"deadline-desk/backend/internal/scheduler"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/database"
	"deadline-desk/backend/pkg/jwt"
	"deadline-desk/backend/pkg/redis"
)

// App 进程级依赖容器，HTTP 服务与 deskctl 共用
//
// 依赖注入顺序：Config → DB / Redis → Collaborators → Service → Scheduler
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client // 连接失败时为 nil，降级为进程内互斥
	JWT       *jwt.Manager
	Clock     service.Clock
	Service   *service.Service
	Scheduler *scheduler.Scheduler
}

// New 建立连接并装配全部组件；失败时已建立的连接会被关闭
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	clock, err := service.NewClock(cfg.App.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db, Clock: clock, JWT: jwt.NewManager(&cfg.Auth)}

	// Redis 可选：连接失败时降级运行，不中断启动
	a.Redis, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，驱动锁与投递占位仅在进程内生效", zap.Error(err))
		a.Redis = nil
	}

	var guard service.DeliveryGuard
	var locker scheduler.Locker
	if a.Redis != nil {
		guard = a.Redis
		locker = a.Redis
	}

	collab, err := integration.Build(cfg, clock, guard, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("初始化外部协作者失败: %w", err)
	}

	opts := service.Options{
		CallTimeout:       cfg.Scheduler.CallTimeout,
		GeneratingTimeout: cfg.Scheduler.GeneratingTimeout,
		DispatchBatchSize: cfg.Scheduler.DispatchBatchSize,
		TemplatesDir:      cfg.Storage.TemplatesDir,
	}
	a.Service = service.NewService(repository.NewRepository(db), clock, collab, opts, a.JWT, logger)

	a.Scheduler = scheduler.New(&cfg.Scheduler, clock.Location(), locker, logger.Named("scheduler"))
	if err := scheduler.RegisterDrivers(a.Scheduler, &cfg.Scheduler, a.Service); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Migrate 执行数据库迁移
func (a *App) Migrate() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return database.RunMigrations(sqlDB, a.Logger)
}

// RateLimiter Redis 不可用时返回 nil
func (a *App) RateLimiter() middleware.RateLimiter {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

// HealthChecks 数据库为必需依赖，Redis 为可选依赖
func (a *App) HealthChecks() []handler.HealthCheck {
	checks := []handler.HealthCheck{{
		Name:     "db",
		Required: true,
		Ping: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.Redis != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: a.Redis.Ping})
	}
	return checks
}

// Close 关闭数据库与 Redis 连接
func (a *App) Close() {
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}
