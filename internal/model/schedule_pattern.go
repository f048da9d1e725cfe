package model

// 课程类型
const (
	ClassTypeLecture  = "lecture"
	ClassTypePractice = "practice"
	ClassTypeLab      = "lab"
)

// 单双周
const (
	WeekTypeOdd  = "odd"
	WeekTypeEven = "even"
	WeekTypeBoth = "both"
)

// SchedulePattern 周期课程表 — 对应 schedule_patterns
// 对账唯一键：(subject_id, day_of_week, start_time, class_type)
type SchedulePattern struct {
	PatternID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pattern_id"`
	SubjectID      string  `gorm:"type:uuid;not null"                             json:"subject_id"`
	DayOfWeek      int     `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1=Monday … 7=Sunday
	StartTime      string  `gorm:"type:varchar(5);not null"                       json:"start_time"`  // HH:MM
	EndTime        string  `gorm:"type:varchar(5);not null"                       json:"end_time"`
	Room           *string `gorm:"type:varchar(255)"                              json:"room,omitempty"`
	ClassType      string  `gorm:"type:varchar(20);not null;default:'lecture'"    json:"class_type"` // lecture | practice | lab
	WeekType       string  `gorm:"type:varchar(10);not null;default:'both'"       json:"week_type"`  // odd | even | both
	InstructorName *string `gorm:"type:varchar(255)"                              json:"instructor_name,omitempty"`
	BaseModel

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID" json:"subject,omitempty"`
}

// TableName 指定表名
func (SchedulePattern) TableName() string { return "schedule_patterns" }
