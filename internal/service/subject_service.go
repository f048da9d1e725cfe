package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 学科模块业务错误 ──

var (
	ErrMaterialEmpty     = errors.New("资料正文不能为空")
	ErrMaterialTooLarge  = errors.New("资料正文过长")
	ErrTemplateNotDocx   = errors.New("封面模板必须是 .docx 文件")
	ErrTemplateNameEmpty = errors.New("模板名称不能为空")
)

const (
	maxMaterialRunes  = 100000
	templateDocPart   = "word/document.xml"
	templateExtension = ".docx"
)

// SubjectService 学科上下文：任课教师、资料与封面模板
//
// 这些数据只在生成提醒正文与作业文档时被读取；
// 学科本身随截止事项自动创建，这里只补充其上下文。
type SubjectService interface {
	List(ctx context.Context, userID string) ([]dto.SubjectResponse, error)
	SetInstructor(ctx context.Context, userID, subjectID string, req *dto.SetInstructorRequest) (*dto.SubjectResponse, error)
	AddMaterial(ctx context.Context, userID, subjectID string, req *dto.AddMaterialRequest) (*dto.MaterialResponse, error)

	ListTemplates(ctx context.Context, userID string) ([]dto.TemplateResponse, error)
	// UploadTemplate 保存 .docx 封面模板；makeDefault 或用户尚无模板时设为默认
	UploadTemplate(ctx context.Context, userID, name, fileName string, data []byte, makeDefault bool) (*dto.TemplateResponse, error)
	SetDefaultTemplate(ctx context.Context, userID, templateID string) (*dto.TemplateResponse, error)
}

type subjectService struct {
	repo   *repository.Repository
	clock  Clock
	opts   Options
	logger *zap.Logger
}

// NewSubjectService 创建 SubjectService 实例
func NewSubjectService(repo *repository.Repository, clock Clock, opts Options, logger *zap.Logger) SubjectService {
	return &subjectService{repo: repo, clock: clock, opts: opts.withDefaults(), logger: logger}
}

// ────────────────────── 学科 / 教师 / 资料 ──────────────────────

func (s *subjectService) List(ctx context.Context, userID string) ([]dto.SubjectResponse, error) {
	subjects, err := s.repo.Subject.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询学科失败: %w", err)
	}
	out := make([]dto.SubjectResponse, 0, len(subjects))
	for i := range subjects {
		out = append(out, s.toSubjectResponse(&subjects[i]))
	}
	return out, nil
}

func (s *subjectService) SetInstructor(ctx context.Context, userID, subjectID string, req *dto.SetInstructorRequest) (*dto.SubjectResponse, error) {
	subject, err := s.loadOwned(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}

	instructor := &model.Instructor{
		SubjectID:   subject.SubjectID,
		Name:        strings.TrimSpace(req.Name),
		Temperament: trimmedOrNil(req.Temperament),
		Preferences: trimmedOrNil(req.Preferences),
		Notes:       trimmedOrNil(req.Notes),
	}
	if err := s.repo.Subject.UpsertInstructor(ctx, instructor); err != nil {
		return nil, fmt.Errorf("保存任课教师失败: %w", err)
	}

	subject.Instructor = instructor
	resp := s.toSubjectResponse(subject)
	return &resp, nil
}

func (s *subjectService) AddMaterial(ctx context.Context, userID, subjectID string, req *dto.AddMaterialRequest) (*dto.MaterialResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrMaterialEmpty
	}
	if utf8.RuneCountInString(text) > maxMaterialRunes {
		return nil, ErrMaterialTooLarge
	}

	subject, err := s.loadOwned(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}

	material := &model.Material{
		SubjectID:  subject.SubjectID,
		FileName:   strings.TrimSpace(req.FileName),
		ParsedText: &text,
	}
	if err := s.repo.Subject.CreateMaterial(ctx, material); err != nil {
		return nil, fmt.Errorf("保存资料失败: %w", err)
	}
	material.ParsedLength = utf8.RuneCountInString(text)

	resp := s.toMaterialResponse(material)
	return &resp, nil
}

func (s *subjectService) loadOwned(ctx context.Context, userID, subjectID string) (*model.Subject, error) {
	subject, err := s.repo.Subject.GetByID(ctx, subjectID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("subject", subjectID)
		}
		return nil, fmt.Errorf("查询学科失败: %w", err)
	}
	if subject.UserID != userID {
		return nil, pkgerrors.NotFound("subject", subjectID)
	}
	return subject, nil
}

// ────────────────────── 封面模板 ──────────────────────

func (s *subjectService) ListTemplates(ctx context.Context, userID string) ([]dto.TemplateResponse, error) {
	templates, err := s.repo.Subject.ListTemplates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询封面模板失败: %w", err)
	}
	out := make([]dto.TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, s.toTemplateResponse(&templates[i]))
	}
	return out, nil
}

func (s *subjectService) UploadTemplate(ctx context.Context, userID, name, fileName string, data []byte, makeDefault bool) (*dto.TemplateResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	if name == "" || name == "." {
		return nil, ErrTemplateNameEmpty
	}
	if err := validateTemplate(fileName, data); err != nil {
		return nil, err
	}

	existing, err := s.repo.Subject.ListTemplates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询封面模板失败: %w", err)
	}

	path := filepath.Join(s.opts.TemplatesDir, userID, uuid.NewString()+templateExtension)
	if err := writeTemplateFile(path, data); err != nil {
		return nil, fmt.Errorf("保存封面模板文件失败: %w", err)
	}

	tpl := &model.TitleTemplate{UserID: userID, Name: name, FilePath: path}
	if err := s.repo.Subject.CreateTemplate(ctx, tpl); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("保存封面模板失败: %w", err)
	}

	if makeDefault || len(existing) == 0 {
		if err := s.repo.Subject.SetDefaultTemplate(ctx, userID, tpl.TemplateID); err != nil {
			return nil, fmt.Errorf("设置默认封面模板失败: %w", err)
		}
		tpl.IsDefault = true
	}

	s.logger.Info("封面模板已上传",
		zap.String("user_id", userID),
		zap.String("template_id", tpl.TemplateID),
		zap.Bool("default", tpl.IsDefault),
	)
	resp := s.toTemplateResponse(tpl)
	return &resp, nil
}

func (s *subjectService) SetDefaultTemplate(ctx context.Context, userID, templateID string) (*dto.TemplateResponse, error) {
	if err := s.repo.Subject.SetDefaultTemplate(ctx, userID, templateID); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("title_template", templateID)
		}
		return nil, fmt.Errorf("设置默认封面模板失败: %w", err)
	}
	tpl, err := s.repo.Subject.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("查询封面模板失败: %w", err)
	}
	resp := s.toTemplateResponse(tpl)
	return &resp, nil
}

// validateTemplate 扩展名为 .docx 且是包含 word/document.xml 的 zip 包
func validateTemplate(fileName string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(fileName), templateExtension) {
		return ErrTemplateNotDocx
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ErrTemplateNotDocx
	}
	for _, f := range zr.File {
		if f.Name == templateDocPart {
			return nil
		}
	}
	return ErrTemplateNotDocx
}

// writeTemplateFile 先写临时文件再重命名
func writeTemplateFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ────────────────────── 转换 ──────────────────────

func (s *subjectService) toSubjectResponse(subject *model.Subject) dto.SubjectResponse {
	resp := dto.SubjectResponse{
		ID:        subject.SubjectID,
		Name:      subject.Name,
		Materials: make([]dto.MaterialResponse, 0, len(subject.Materials)),
	}
	if in := subject.Instructor; in != nil {
		resp.Instructor = &dto.InstructorResponse{
			Name:        in.Name,
			Temperament: in.Temperament,
			Preferences: in.Preferences,
			Notes:       in.Notes,
		}
	}
	for i := range subject.Materials {
		resp.Materials = append(resp.Materials, s.toMaterialResponse(&subject.Materials[i]))
	}
	return resp
}

func (s *subjectService) toMaterialResponse(m *model.Material) dto.MaterialResponse {
	return dto.MaterialResponse{
		ID:        m.MaterialID,
		FileName:  m.FileName,
		Chars:     m.ParsedLength,
		CreatedAt: formatTime(m.CreatedAt, s.clock.Location()),
	}
}

func (s *subjectService) toTemplateResponse(t *model.TitleTemplate) dto.TemplateResponse {
	return dto.TemplateResponse{
		ID:        t.TemplateID,
		Name:      t.Name,
		IsDefault: t.IsDefault,
		CreatedAt: formatTime(t.CreatedAt, s.clock.Location()),
	}
}
