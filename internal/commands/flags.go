package commands

import (
	"context"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
)

// JobRunner 手动触发周期驱动
type JobRunner interface {
	RunOnce(ctx context.Context, name string) (*dto.TickReport, error)
	Jobs() []string
}

// Flags 全局参数与 Before 钩子装配的依赖，所有子命令共享同一指针
type Flags struct {
	ConfigPath string
	LogLevel   string

	Runner   JobRunner
	Schedule service.ScheduleService
	Auth     service.AuthService
	User     service.UserService
	Migrate  func() error
}
