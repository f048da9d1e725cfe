package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	pkgerrors "deadline-desk/backend/pkg/errors"
	"deadline-desk/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ScheduleHandler 课程表 HTTP 处理器（日历源 / 同步 / 周期课程 / 导出）
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	exportSvc   service.ExportService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, exportSvc service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc, exportSvc: exportSvc}
}

type setFeedRequest struct {
	ICalURL string `json:"ical_url" binding:"required,max=2048"`
}

// SetFeed 设置日历源地址
// PUT /api/v1/schedule/feed
func (h *ScheduleHandler) SetFeed(c *gin.Context) {
	var req setFeedRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.scheduleSvc.SetFeedURL(c.Request.Context(), userID, req.ICalURL); err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"ical_url": strings.TrimSpace(req.ICalURL)})
}

// SyncSchedule 立即同步日历源；请求体可选，提供 ical_url 时先更新日历源
// POST /api/v1/schedule/sync
func (h *ScheduleHandler) SyncSchedule(c *gin.Context) {
	var req dto.SyncScheduleRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if req.ICalURL != nil {
		if err := h.scheduleSvc.SetFeedURL(c.Request.Context(), userID, *req.ICalURL); err != nil {
			h.handleScheduleError(c, err)
			return
		}
	}

	result, err := h.scheduleSvc.Sync(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrFetch):
			response.ErrorWithData(c, http.StatusBadGateway, 14003, "日历源不可达", result)
		case errors.Is(err, pkgerrors.ErrParse):
			response.ErrorWithData(c, http.StatusUnprocessableEntity, 14004, "日历源格式错误或没有课次", result)
		default:
			h.handleScheduleError(c, err)
		}
		return
	}

	response.OK(c, result)
}

// ListPatterns 列出周期课程
// GET /api/v1/schedule/patterns
func (h *ScheduleHandler) ListPatterns(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.scheduleSvc.ListPatterns(c.Request.Context(), userID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ClearPatterns 清空周期课程
// DELETE /api/v1/schedule/patterns
func (h *ScheduleHandler) ClearPatterns(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.scheduleSvc.ClearPatterns(c.Request.Context(), userID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// ExportPatterns 导出周期课程为 Excel
// GET /api/v1/schedule/export
func (h *ScheduleHandler) ExportPatterns(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportPatterns(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExportNoPatterns):
			response.NotFound(c, 15001, "暂无课程表，请先同步日历源")
		default:
			writeKindError(c, err)
		}
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleFeedInvalid):
		response.BadRequest(c, 14001, "日历源地址必须以 http://、https:// 或 webcal:// 开头")
	case errors.Is(err, service.ErrScheduleNoFeedURL):
		response.BadRequest(c, 14002, "未配置日历源")
	default:
		writeKindError(c, err)
	}
}
