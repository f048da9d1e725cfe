package dto

// ── 学科 / 任课教师 / 资料 ──

// SetInstructorRequest 设置学科的任课教师（每个学科一位，重复设置即覆盖）
type SetInstructorRequest struct {
	Name        string  `json:"name"        binding:"required,min=1,max=255"`
	Temperament *string `json:"temperament" binding:"omitempty,max=2000"`
	Preferences *string `json:"preferences" binding:"omitempty,max=2000"`
	Notes       *string `json:"notes"       binding:"omitempty,max=2000"`
}

// AddMaterialRequest 为学科添加资料，Text 为已抽取的纯文本
type AddMaterialRequest struct {
	FileName string `json:"file_name" binding:"required,min=1,max=255"`
	Text     string `json:"text"      binding:"required"`
}

// SubjectResponse 学科响应
type SubjectResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Instructor *InstructorResponse `json:"instructor,omitempty"`
	Materials  []MaterialResponse  `json:"materials"`
}

// InstructorResponse 任课教师响应
type InstructorResponse struct {
	Name        string  `json:"name"`
	Temperament *string `json:"temperament,omitempty"`
	Preferences *string `json:"preferences,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// MaterialResponse 资料响应，不回传正文
type MaterialResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	Chars     int    `json:"chars"`
	CreatedAt string `json:"created_at"`
}

// ── 封面模板 ──

// TemplateResponse 封面模板响应
type TemplateResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}
