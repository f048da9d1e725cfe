package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/response"
)

// WorkHandler 生成作业 HTTP 处理器
//
// 状态流转：pending → generating → ready → confirmed → sent
// 不允许的流转统一返回 409（10409）。
type WorkHandler struct {
	workSvc service.WorkService
}

// NewWorkHandler 创建 WorkHandler
func NewWorkHandler(workSvc service.WorkService) *WorkHandler {
	return &WorkHandler{workSvc: workSvc}
}

// CreateWork 为截止事项创建生成作业
// POST /api/v1/works
func (h *WorkHandler) CreateWork(c *gin.Context) {
	var req dto.CreateWorkRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	work, err := h.workSvc.CreateForDeadline(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleWorkError(c, err)
		return
	}

	response.Created(c, work)
}

// ListWorks 列出当前用户的生成作业
// GET /api/v1/works
func (h *WorkHandler) ListWorks(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.workSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.handleWorkError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetWork 获取生成作业详情
// GET /api/v1/works/:id
func (h *WorkHandler) GetWork(c *gin.Context) {
	h.withWork(c, h.workSvc.Get)
}

// StartGeneration 立即生成（仅 pending）
// POST /api/v1/works/:id/generate
func (h *WorkHandler) StartGeneration(c *gin.Context) {
	h.withWork(c, h.workSvc.StartGeneration)
}

// ConfirmWork 确认作业，到计划时间后发送（仅 ready）
// POST /api/v1/works/:id/confirm
func (h *WorkHandler) ConfirmWork(c *gin.Context) {
	h.withWork(c, h.workSvc.Confirm)
}

// RegenerateWork 丢弃产物并回到 pending（ready / confirmed）
// POST /api/v1/works/:id/regenerate
func (h *WorkHandler) RegenerateWork(c *gin.Context) {
	h.withWork(c, h.workSvc.Regenerate)
}

// RescheduleWork 修改计划发送时间
// PUT /api/v1/works/:id/schedule
func (h *WorkHandler) RescheduleWork(c *gin.Context) {
	id, ok := pathID(c, "id", "作业ID不能为空")
	if !ok {
		return
	}

	var req dto.RescheduleWorkRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	work, err := h.workSvc.Reschedule(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleWorkError(c, err)
		return
	}

	response.OK(c, work)
}

type workAction func(ctx context.Context, userID, workID string) (*dto.WorkResponse, error)

// withWork 解析路径 ID 与用户后执行单作业操作
func (h *WorkHandler) withWork(c *gin.Context, action workAction) {
	id, ok := pathID(c, "id", "作业ID不能为空")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	work, err := action(c.Request.Context(), userID, id)
	if err != nil {
		h.handleWorkError(c, err)
		return
	}

	response.OK(c, work)
}

func (h *WorkHandler) handleWorkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkAlreadyExists):
		response.Conflict(c, 13001, "该截止事项已存在生成作业")
	case errors.Is(err, service.ErrWorkAlreadySent):
		response.Conflict(c, 13002, "作业已发送，无法修改发送时间")
	case errors.Is(err, service.ErrWorkNoArtifact):
		response.Conflict(c, 13003, "作业尚无可发送的文件")
	default:
		writeKindError(c, err)
	}
}
