package model

import "time"

// WorkStatus 生成作业状态
type WorkStatus string

const (
	WorkStatusPending    WorkStatus = "pending"
	WorkStatusGenerating WorkStatus = "generating"
	WorkStatusReady      WorkStatus = "ready"
	WorkStatusConfirmed  WorkStatus = "confirmed"
	WorkStatusSent       WorkStatus = "sent"
)

// UserWorkSettings 作业生成偏好表 — 对应 user_work_settings（与 users 1:1）
// 字段不带 gorm default 标签：false / 0 是合法取值，默认值只由迁移与 DefaultUserWorkSettings 提供
type UserWorkSettings struct {
	UserID                string `gorm:"type:uuid;primaryKey" json:"user_id"`
	AutoGenerate          bool   `gorm:"not null"             json:"auto_generate"`
	GenerateDaysBefore    int    `gorm:"not null"             json:"generate_days_before"`
	RequireConfirmation   bool   `gorm:"not null"             json:"require_confirmation"`
	DefaultSendDaysBefore int    `gorm:"not null"             json:"default_send_days_before"`
	BaseModel
}

// TableName 指定表名
func (UserWorkSettings) TableName() string { return "user_work_settings" }

// DefaultUserWorkSettings 用户未配置时使用的默认值
func DefaultUserWorkSettings(userID string) *UserWorkSettings {
	return &UserWorkSettings{
		UserID:                userID,
		AutoGenerate:          false,
		GenerateDaysBefore:    5,
		RequireConfirmation:   true,
		DefaultSendDaysBefore: 1,
	}
}

// GeneratedWork 生成作业表 — 对应 generated_works（与 deadlines 1:1）
//
// 状态机：pending → generating → ready → confirmed → sent
//   - generating → pending：生成失败，等待下个周期重试
//   - ready|confirmed → pending：用户要求重新生成
type GeneratedWork struct {
	WorkID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"work_id"`
	DeadlineID          string     `gorm:"type:uuid;not null;uniqueIndex"                 json:"deadline_id"`
	Status              WorkStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	TitleTemplateID     *string    `gorm:"type:uuid"                                      json:"title_template_id,omitempty"`
	ContentText         *string    `gorm:"type:text"                                      json:"-"`
	FileName            *string    `gorm:"type:varchar(255)"                              json:"file_name,omitempty"`
	FilePath            *string    `gorm:"type:text"                                      json:"-"` // 产物引用
	ScheduledSendAt     *time.Time `                                                      json:"scheduled_send_at,omitempty"`
	AutoSend            bool       `gorm:"not null;default:false"                         json:"auto_send"`
	GenerationStartedAt *time.Time `                                                      json:"generation_started_at,omitempty"`
	GeneratedAt         *time.Time `                                                      json:"generated_at,omitempty"`
	ConfirmedAt         *time.Time `                                                      json:"confirmed_at,omitempty"`
	SentAt              *time.Time `                                                      json:"sent_at,omitempty"`
	LastError           *string    `gorm:"type:text"                                      json:"last_error,omitempty"`
	BaseModel

	// 关联
	Deadline      *Deadline      `gorm:"foreignKey:DeadlineID;references:DeadlineID"    json:"deadline,omitempty"`
	TitleTemplate *TitleTemplate `gorm:"foreignKey:TitleTemplateID;references:TemplateID" json:"title_template,omitempty"`
}

// TableName 指定表名
func (GeneratedWork) TableName() string { return "generated_works" }
