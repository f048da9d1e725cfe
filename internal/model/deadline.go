package model

import "time"

// Deadline 截止事项表 — 对应 deadlines
type Deadline struct {
	DeadlineID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"deadline_id"`
	SubjectID   string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	Title       string    `gorm:"type:varchar(255);not null"                     json:"title"`
	WorkType    string    `gorm:"type:varchar(100);not null"                     json:"work_type"` // homework | lab | practical | coursework | report ...
	WorkNumber  *int      `                                                      json:"work_number,omitempty"`
	Description *string   `gorm:"type:text"                                      json:"description,omitempty"`
	DeadlineAt  time.Time `gorm:"not null"                                       json:"deadline_at"`
	IsCompleted bool      `gorm:"not null;default:false"                         json:"is_completed"`
	BaseModel

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
}

// TableName 指定表名
func (Deadline) TableName() string { return "deadlines" }

// ReminderSettings 提醒偏好表 — 对应 reminder_settings（与 users 1:1）
type ReminderSettings struct {
	UserID      string   `gorm:"type:uuid;primaryKey"  json:"user_id"`
	HoursBefore IntArray `gorm:"type:int[];not null"   json:"hours_before"`
	IsEnabled   bool     `gorm:"not null"              json:"is_enabled"` // 不带 default 标签，false 需要原样写入
	BaseModel
}

// TableName 指定表名
func (ReminderSettings) TableName() string { return "reminder_settings" }

// Reminder 提醒表 — 对应 reminders
// 不变量：SendAt = Deadline.DeadlineAt − HoursBefore；(deadline_id, hours_before) 唯一
type Reminder struct {
	ReminderID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"reminder_id"`
	DeadlineID  string     `gorm:"type:uuid;not null"                             json:"deadline_id"`
	HoursBefore int        `gorm:"not null"                                       json:"hours_before"`
	SendAt      time.Time  `gorm:"not null"                                       json:"send_at"`
	IsSent      bool       `gorm:"not null;default:false"                         json:"is_sent"`
	Message     *string    `gorm:"type:text"                                      json:"message,omitempty"`
	SentAt      *time.Time `                                                      json:"sent_at,omitempty"`
	BaseModel

	// 关联
	Deadline *Deadline `gorm:"foreignKey:DeadlineID;references:DeadlineID" json:"deadline,omitempty"`
}

// TableName 指定表名
func (Reminder) TableName() string { return "reminders" }
