package dto

// ── 用户 ──

// RegisterUserRequest 按 Telegram 身份登记用户，已存在时只更新非空字段
type RegisterUserRequest struct {
	TelegramID  int64   `json:"telegram_id"  binding:"required"`
	Username    *string `json:"username"     binding:"omitempty,max=255"`
	FirstName   *string `json:"first_name"   binding:"omitempty,max=255"`
	GroupNumber *string `json:"group_number" binding:"omitempty,max=50"`
}

// UpdateProfileRequest 部分更新个人资料（封面上的姓名与班级）
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name"   binding:"omitempty,min=1,max=255"`
	GroupNumber *string `json:"group_number" binding:"omitempty,max=50"`
}

// UserResponse 用户响应
type UserResponse struct {
	ID               string  `json:"id"`
	TelegramID       int64   `json:"telegram_id"`
	Username         *string `json:"username,omitempty"`
	FirstName        *string `json:"first_name,omitempty"`
	GroupNumber      *string `json:"group_number,omitempty"`
	HasScheduleFeed  bool    `json:"has_schedule_feed"`
	LastScheduleSync *string `json:"last_schedule_sync,omitempty"`
}

// RegisterUserResponse 登记结果，Created 区分新建与更新
type RegisterUserResponse struct {
	User    UserResponse `json:"user"`
	Created bool         `json:"created"`
}
