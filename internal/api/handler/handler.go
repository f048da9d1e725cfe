package handler

import "deadline-desk/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	User     *UserHandler
	Subject  *SubjectHandler
	Deadline *DeadlineHandler
	Settings *SettingsHandler
	Work     *WorkHandler
	Schedule *ScheduleHandler
	Health   *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, checks ...HealthCheck) *Handler {
	return &Handler{
		User:     NewUserHandler(svc.User),
		Subject:  NewSubjectHandler(svc.Subject),
		Deadline: NewDeadlineHandler(svc.Deadline),
		Settings: NewSettingsHandler(svc.Reminder, svc.Work),
		Work:     NewWorkHandler(svc.Work),
		Schedule: NewScheduleHandler(svc.Schedule, svc.Export),
		Health:   NewHealthHandler(checks...),
	}
}
