package dto

// ── 课程表同步 ──

// SyncScheduleRequest 手动同步请求；提供 ical_url 时先更新用户的日历源
type SyncScheduleRequest struct {
	ICalURL *string `json:"ical_url" binding:"omitempty,max=2048"`
}

// SyncResult 一次同步的结构化结果
// 失败时 Success=false，Error 为原因描述，各计数为 0
type SyncResult struct {
	Success       bool   `json:"success"`
	EventsParsed  int    `json:"events_parsed"`
	PatternsFound int    `json:"patterns_found"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Error         string `json:"error,omitempty"`
}

// SchedulePatternResponse 周期课程响应
type SchedulePatternResponse struct {
	ID             string  `json:"id"`
	SubjectID      string  `json:"subject_id"`
	SubjectName    string  `json:"subject_name,omitempty"`
	DayOfWeek      int     `json:"day_of_week"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Room           *string `json:"room,omitempty"`
	ClassType      string  `json:"class_type"`
	WeekType       string  `json:"week_type"`
	InstructorName *string `json:"instructor_name,omitempty"`
}

// ClearPatternsResponse 清空课程表响应
type ClearPatternsResponse struct {
	Deleted int64 `json:"deleted"`
}
