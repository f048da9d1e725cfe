package model

import "time"

// User 学生用户表 — 对应 users
// TelegramID 为通知投递使用的外部身份
type User struct {
	UserID           string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	TelegramID       int64      `gorm:"not null;uniqueIndex"                           json:"telegram_id"`
	Username         *string    `gorm:"type:varchar(255)"                              json:"username,omitempty"`
	FirstName        *string    `gorm:"type:varchar(255)"                              json:"first_name,omitempty"`
	GroupNumber      *string    `gorm:"type:varchar(50)"                               json:"group_number,omitempty"`
	ICalURL          *string    `gorm:"column:ical_url;type:text"                      json:"ical_url,omitempty"`
	LastScheduleSync *time.Time `                                                      json:"last_schedule_sync,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// DisplayName 用于文档封面的学生姓名
func (u *User) DisplayName() string {
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	return "Студент"
}

// Subject 学科表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	UserID    string `gorm:"type:uuid;not null"                             json:"user_id"`
	Name      string `gorm:"type:varchar(255);not null"                     json:"name"`
	BaseModel

	// 关联
	User       *User       `gorm:"foreignKey:UserID;references:UserID"       json:"user,omitempty"`
	Instructor *Instructor `gorm:"foreignKey:SubjectID;references:SubjectID" json:"instructor,omitempty"`
	Materials  []Material  `gorm:"foreignKey:SubjectID;references:SubjectID" json:"materials,omitempty"`
}

// TableName 指定表名
func (Subject) TableName() string { return "subjects" }

// Instructor 任课教师表 — 对应 instructors（与 subjects 1:1）
type Instructor struct {
	InstructorID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"instructor_id"`
	SubjectID    string  `gorm:"type:uuid;not null;uniqueIndex"                 json:"subject_id"`
	Name         string  `gorm:"type:varchar(255);not null"                     json:"name"`
	Temperament  *string `gorm:"type:text"                                      json:"temperament,omitempty"`
	Preferences  *string `gorm:"type:text"                                      json:"preferences,omitempty"`
	Notes        *string `gorm:"type:text"                                      json:"notes,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Instructor) TableName() string { return "instructors" }

// Material 学科资料表 — 对应 materials，ParsedText 为已抽取的纯文本
type Material struct {
	MaterialID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"material_id"`
	SubjectID  string  `gorm:"type:uuid;not null"                             json:"subject_id"`
	FileName   string  `gorm:"type:varchar(255);not null"                     json:"file_name"`
	ParsedText *string `gorm:"type:text"                                      json:"parsed_text,omitempty"`
	BaseModel

	// ParsedLength 只在列表查询中以 length(parsed_text) 填充
	ParsedLength int `gorm:"->" json:"-"`
}

// TableName 指定表名
func (Material) TableName() string { return "materials" }

// TitleTemplate 封面模板表 — 对应 title_templates
type TitleTemplate struct {
	TemplateID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"template_id"`
	UserID     string `gorm:"type:uuid;not null"                             json:"user_id"`
	Name       string `gorm:"type:varchar(255);not null"                     json:"name"`
	FilePath   string `gorm:"type:text;not null"                             json:"file_path"`
	IsDefault  bool   `gorm:"not null;default:false"                         json:"is_default"`
	BaseModel
}

// TableName 指定表名
func (TitleTemplate) TableName() string { return "title_templates" }
