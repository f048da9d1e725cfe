package dto

import "time"

// ── 截止事项 ──

// CreateDeadlineRequest 创建截止事项请求
type CreateDeadlineRequest struct {
	SubjectName string    `json:"subject_name" binding:"required,min=1,max=255"`
	Title       string    `json:"title"        binding:"required,min=1,max=255"`
	WorkType    string    `json:"work_type"    binding:"required,max=100"`
	WorkNumber  *int      `json:"work_number"  binding:"omitempty,min=1"`
	Description *string   `json:"description"  binding:"omitempty,max=5000"`
	DeadlineAt  time.Time `json:"deadline_at"  binding:"required"`
}

// SetCompletedRequest 切换完成状态请求
type SetCompletedRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// DeadlineResponse 截止事项响应
type DeadlineResponse struct {
	ID          string             `json:"id"`
	SubjectID   string             `json:"subject_id"`
	SubjectName string             `json:"subject_name,omitempty"`
	Title       string             `json:"title"`
	WorkType    string             `json:"work_type"`
	WorkNumber  *int               `json:"work_number,omitempty"`
	Description *string            `json:"description,omitempty"`
	DeadlineAt  string             `json:"deadline_at"`
	IsCompleted bool               `json:"is_completed"`
	Reminders   []ReminderResponse `json:"reminders,omitempty"`
	Work        *WorkResponse      `json:"work,omitempty"`
}

// ReminderResponse 提醒响应
type ReminderResponse struct {
	ID          string  `json:"id"`
	HoursBefore int     `json:"hours_before"`
	SendAt      string  `json:"send_at"`
	IsSent      bool    `json:"is_sent"`
	SentAt      *string `json:"sent_at,omitempty"`
}

// ── 用户偏好 ──

// UpdateReminderSettingsRequest 更新提醒偏好请求
type UpdateReminderSettingsRequest struct {
	HoursBefore []int `json:"hours_before" binding:"required,min=1,max=10,dive,min=1,max=720"`
	IsEnabled   *bool `json:"is_enabled"`
}

// ReminderSettingsResponse 提醒偏好响应
type ReminderSettingsResponse struct {
	HoursBefore []int `json:"hours_before"`
	IsEnabled   bool  `json:"is_enabled"`
}

// UpdateWorkSettingsRequest 更新作业生成偏好请求（字段均可选）
type UpdateWorkSettingsRequest struct {
	AutoGenerate          *bool `json:"auto_generate"`
	GenerateDaysBefore    *int  `json:"generate_days_before"     binding:"omitempty,min=0,max=60"`
	RequireConfirmation   *bool `json:"require_confirmation"`
	DefaultSendDaysBefore *int  `json:"default_send_days_before" binding:"omitempty,min=0,max=60"`
}

// WorkSettingsResponse 作业生成偏好响应
type WorkSettingsResponse struct {
	AutoGenerate          bool `json:"auto_generate"`
	GenerateDaysBefore    int  `json:"generate_days_before"`
	RequireConfirmation   bool `json:"require_confirmation"`
	DefaultSendDaysBefore int  `json:"default_send_days_before"`
}
