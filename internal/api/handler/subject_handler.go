package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/response"
)

// SubjectHandler 学科上下文 HTTP 处理器：任课教师、资料、封面模板
type SubjectHandler struct {
	subjectSvc service.SubjectService
}

// NewSubjectHandler 创建 SubjectHandler
func NewSubjectHandler(subjectSvc service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectSvc: subjectSvc}
}

// ListSubjects 列出学科及其任课教师与资料
// GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	subjects, err := h.subjectSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, subjects)
}

// SetInstructor 设置学科的任课教师
// PUT /api/v1/subjects/:id/instructor
func (h *SubjectHandler) SetInstructor(c *gin.Context) {
	subjectID, ok := pathID(c, "id", "学科ID不能为空")
	if !ok {
		return
	}

	var req dto.SetInstructorRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	subject, err := h.subjectSvc.SetInstructor(c.Request.Context(), userID, subjectID, &req)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, subject)
}

// AddMaterial 为学科添加资料文本
// POST /api/v1/subjects/:id/materials
func (h *SubjectHandler) AddMaterial(c *gin.Context) {
	subjectID, ok := pathID(c, "id", "学科ID不能为空")
	if !ok {
		return
	}

	var req dto.AddMaterialRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	material, err := h.subjectSvc.AddMaterial(c.Request.Context(), userID, subjectID, &req)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.Created(c, material)
}

// ListTemplates 列出封面模板
// GET /api/v1/templates
func (h *SubjectHandler) ListTemplates(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	templates, err := h.subjectSvc.ListTemplates(c.Request.Context(), userID)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, templates)
}

// UploadTemplate 上传 .docx 封面模板（multipart：file / name / default）
// POST /api/v1/templates
func (h *SubjectHandler) UploadTemplate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 18001, "缺少模板文件")
		return
	}
	makeDefault, _ := strconv.ParseBool(c.PostForm("default"))

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 18001, "缺少模板文件")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, 18001, "缺少模板文件")
		return
	}

	tpl, err := h.subjectSvc.UploadTemplate(c.Request.Context(), userID, c.PostForm("name"), fh.Filename, data, makeDefault)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.Created(c, tpl)
}

// SetDefaultTemplate 设为默认封面模板
// PUT /api/v1/templates/:id/default
func (h *SubjectHandler) SetDefaultTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "id", "模板ID不能为空")
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.subjectSvc.SetDefaultTemplate(c.Request.Context(), userID, templateID)
	if err != nil {
		h.handleSubjectError(c, err)
		return
	}

	response.OK(c, tpl)
}

func (h *SubjectHandler) handleSubjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTemplateNotDocx):
		response.BadRequest(c, 18002, "封面模板必须是 .docx 文件")
	case errors.Is(err, service.ErrTemplateNameEmpty):
		response.BadRequest(c, 18003, "模板名称不能为空")
	case errors.Is(err, service.ErrMaterialEmpty):
		response.BadRequest(c, 18004, "资料正文不能为空")
	case errors.Is(err, service.ErrMaterialTooLarge):
		response.BadRequest(c, 18005, "资料正文过长")
	default:
		writeKindError(c, err)
	}
}
