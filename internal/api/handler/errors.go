package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "deadline-desk/backend/pkg/errors"
	"deadline-desk/backend/pkg/response"
)

// ── 错误码 ──
//
//	10xxx 通用：10001 参数校验 / 10002 未认证 / 10004 限流 / 10005 请求体过大
//	12xxx 截止事项   13xxx 生成作业   14xxx 课程表   15xxx 导出   16xxx 偏好
//	17xxx 个人资料   18xxx 学科资料与封面模板
//	10404 / 10409 / 10502 / 10422：按 pkg/errors 分类兜底

// writeKindError 按错误分类写入响应，各 Handler 先处理本模块哨兵错误
func writeKindError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 10404, "记录不存在")
	case errors.Is(err, pkgerrors.ErrInvalidTransition):
		response.Conflict(c, 10409, "当前状态不允许该操作")
	case errors.Is(err, pkgerrors.ErrFetch):
		response.BadGateway(c, 10502, "日历源不可达")
	case errors.Is(err, pkgerrors.ErrParse):
		response.Error(c, http.StatusUnprocessableEntity, 10422, "日历源格式错误")
	case errors.Is(err, pkgerrors.ErrGeneration), errors.Is(err, pkgerrors.ErrDelivery):
		response.BadGateway(c, 10503, "外部服务调用失败")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
