package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/response"
)

// DeadlineHandler 截止事项 HTTP 处理器
type DeadlineHandler struct {
	deadlineSvc service.DeadlineService
}

// NewDeadlineHandler 创建 DeadlineHandler
func NewDeadlineHandler(deadlineSvc service.DeadlineService) *DeadlineHandler {
	return &DeadlineHandler{deadlineSvc: deadlineSvc}
}

// CreateDeadline 创建截止事项，同时规划提醒
// POST /api/v1/deadlines
func (h *DeadlineHandler) CreateDeadline(c *gin.Context) {
	var req dto.CreateDeadlineRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	deadline, err := h.deadlineSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleDeadlineError(c, err)
		return
	}

	response.Created(c, deadline)
}

// ListDeadlines 列出尚未到期的截止事项
// GET /api/v1/deadlines
func (h *DeadlineHandler) ListDeadlines(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.deadlineSvc.ListUpcoming(c.Request.Context(), userID)
	if err != nil {
		h.handleDeadlineError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetDeadline 获取截止事项详情（含提醒与生成作业）
// GET /api/v1/deadlines/:id
func (h *DeadlineHandler) GetDeadline(c *gin.Context) {
	id, ok := pathID(c, "id", "截止事项ID不能为空")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	deadline, err := h.deadlineSvc.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.handleDeadlineError(c, err)
		return
	}

	response.OK(c, deadline)
}

// SetCompleted 标记完成 / 取消完成
// PUT /api/v1/deadlines/:id/completed
func (h *DeadlineHandler) SetCompleted(c *gin.Context) {
	id, ok := pathID(c, "id", "截止事项ID不能为空")
	if !ok {
		return
	}

	var req dto.SetCompletedRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	deadline, err := h.deadlineSvc.SetCompleted(c.Request.Context(), userID, id, *req.Completed)
	if err != nil {
		h.handleDeadlineError(c, err)
		return
	}

	response.OK(c, deadline)
}

// DeleteDeadline 删除截止事项
// DELETE /api/v1/deadlines/:id
func (h *DeadlineHandler) DeleteDeadline(c *gin.Context) {
	id, ok := pathID(c, "id", "截止事项ID不能为空")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.deadlineSvc.Delete(c.Request.Context(), userID, id); err != nil {
		h.handleDeadlineError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *DeadlineHandler) handleDeadlineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDeadlineInPast):
		response.BadRequest(c, 12001, "截止时间必须晚于当前时间")
	case errors.Is(err, service.ErrDeadlineSubjectEmpty):
		response.BadRequest(c, 12002, "学科名称不能为空")
	default:
		writeKindError(c, err)
	}
}
