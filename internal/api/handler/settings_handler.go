package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/response"
)

// SettingsHandler 用户偏好 HTTP 处理器（提醒 / 作业生成）
type SettingsHandler struct {
	reminderSvc service.ReminderService
	workSvc     service.WorkService
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(reminderSvc service.ReminderService, workSvc service.WorkService) *SettingsHandler {
	return &SettingsHandler{reminderSvc: reminderSvc, workSvc: workSvc}
}

// GetReminderSettings 获取提醒偏好
// GET /api/v1/settings/reminders
func (h *SettingsHandler) GetReminderSettings(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.reminderSvc.GetSettings(c.Request.Context(), userID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// UpdateReminderSettings 更新提醒偏好，仅影响之后创建的截止事项
// PUT /api/v1/settings/reminders
func (h *SettingsHandler) UpdateReminderSettings(c *gin.Context) {
	var req dto.UpdateReminderSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.reminderSvc.UpdateSettings(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// GetWorkSettings 获取作业生成偏好
// GET /api/v1/settings/works
func (h *SettingsHandler) GetWorkSettings(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.workSvc.GetSettings(c.Request.Context(), userID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// UpdateWorkSettings 部分更新作业生成偏好
// PUT /api/v1/settings/works
func (h *SettingsHandler) UpdateWorkSettings(c *gin.Context) {
	var req dto.UpdateWorkSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.workSvc.UpdateSettings(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

func (h *SettingsHandler) handleSettingsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReminderOffsetsEmpty):
		response.BadRequest(c, 16001, "至少需要一个提醒时间点")
	case errors.Is(err, service.ErrReminderOffsetInvalid):
		response.BadRequest(c, 16002, "提醒时间点必须在 1 小时到 30 天之间")
	case errors.Is(err, service.ErrWorkSettingsInvalid):
		response.BadRequest(c, 16003, "天数不能为负")
	default:
		writeKindError(c, err)
	}
}
