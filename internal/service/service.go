package service

import (
	"go.uber.org/zap"

	"deadline-desk/backend/internal/repository"
	"deadline-desk/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth     AuthService
	User     UserService
	Subject  SubjectService
	Deadline DeadlineService
	Reminder ReminderService
	Work     WorkService
	Schedule ScheduleService
	Export   ExportService
}

// NewService 创建 Service 聚合，协作者在进程启动时构造一次后显式注入
func NewService(
	repo *repository.Repository,
	clock Clock,
	collab Collaborators,
	opts Options,
	jwtMgr *jwt.Manager,
	logger *zap.Logger,
) *Service {
	reminders := NewReminderService(repo, clock, collab, opts, logger.Named("reminder"))
	works := NewWorkService(repo, clock, collab, opts, logger.Named("work"))
	return &Service{
		Auth:     NewAuthService(repo, jwtMgr, logger),
		User:     NewUserService(repo, clock, logger.Named("user")),
		Subject:  NewSubjectService(repo, clock, opts, logger.Named("subject")),
		Deadline: NewDeadlineService(repo, clock, reminders, works, logger.Named("deadline")),
		Reminder: reminders,
		Work:     works,
		Schedule: NewScheduleService(repo, clock, collab, opts, logger.Named("schedule")),
		Export:   NewExportService(repo, logger.Named("export")),
	}
}
