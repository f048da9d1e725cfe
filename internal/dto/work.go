package dto

import "time"

// ── 生成作业 ──

// CreateWorkRequest 为截止事项创建生成作业请求
type CreateWorkRequest struct {
	DeadlineID      string     `json:"deadline_id"       binding:"required,uuid"`
	TitleTemplateID *string    `json:"title_template_id" binding:"omitempty,uuid"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at"`
}

// RescheduleWorkRequest 修改计划发送时间请求
type RescheduleWorkRequest struct {
	ScheduledSendAt time.Time `json:"scheduled_send_at" binding:"required"`
}

// WorkResponse 生成作业响应
type WorkResponse struct {
	ID              string  `json:"id"`
	DeadlineID      string  `json:"deadline_id"`
	Status          string  `json:"status"`
	TitleTemplateID *string `json:"title_template_id,omitempty"`
	FileName        *string `json:"file_name,omitempty"`
	ScheduledSendAt *string `json:"scheduled_send_at,omitempty"`
	AutoSend        bool    `json:"auto_send"`
	GeneratedAt     *string `json:"generated_at,omitempty"`
	ConfirmedAt     *string `json:"confirmed_at,omitempty"`
	SentAt          *string `json:"sent_at,omitempty"`
	LastError       *string `json:"last_error,omitempty"`
}

// ── 外部协作者载荷 ──

// DeadlineContext 提醒正文生成所需的截止事项信息
type DeadlineContext struct {
	SubjectName string
	Title       string
	WorkType    string
	WorkNumber  *int
	Description string
	DeadlineAt  time.Time
	TimeLeft    string // 剩余时间标签，如 "3 дн." / "12 ч."
}

// InstructorContext 任课教师信息
type InstructorContext struct {
	Name        string
	Temperament string
	Preferences string
	Notes       string
}

// MaterialContext 学科资料片段
type MaterialContext struct {
	FileName string
	Text     string
}

// WorkContext 作业正文生成所需的上下文
type WorkContext struct {
	SubjectName  string
	WorkType     string
	WorkTypeName string // 面向用户的作业类型名称
	WorkNumber   *int
	Title        string
	Description  string
	DeadlineAt   time.Time
	Instructor   *InstructorContext
	Materials    []MaterialContext
}

// DocumentRequest 文档构建请求
type DocumentRequest struct {
	UserID         string
	DeadlineID     string
	WorkType       string
	Content        string
	TemplatePath   string // 为空时使用内置封面
	StudentName    string
	GroupNumber    string
	SubjectName    string
	InstructorName string
	WorkTypeName   string
	WorkNumber     *int
	Title          string
	Year           int
}

// DocumentArtifact 文档构建产物
type DocumentArtifact struct {
	FileName string
	Ref      string // 产物引用（本地路径或存储键）
}
