package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/response"
)

// UserHandler 个人资料 HTTP 处理器
// 用户登记走 deskctl user add（按 Telegram 身份），这里只处理已认证用户自身的资料
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// GetProfile 获取当前用户资料
// GET /api/v1/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.userSvc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeKindError(c, err)
		return
	}

	response.OK(c, profile)
}

// UpdateProfile 更新封面使用的姓名与班级
// PUT /api/v1/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.userSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrUserProfileEmpty) {
			response.BadRequest(c, 17001, "至少需要一个待更新字段")
			return
		}
		writeKindError(c, err)
		return
	}

	response.OK(c, profile)
}
