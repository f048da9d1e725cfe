package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deadline-desk/backend/internal/model"
)

// SubjectRepository 学科数据访问接口
type SubjectRepository interface {
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	// GetOrCreate 按 (user_id, name) 获取学科，不存在则创建
	GetOrCreate(ctx context.Context, userID, name string) (*model.Subject, error)
	// ListByUser 预加载任课教师与资料元数据（不含正文）
	ListByUser(ctx context.Context, userID string) ([]model.Subject, error)

	// ── 任课教师 / 资料 ──

	// UpsertInstructor 按 subject_id 插入或覆盖任课教师
	UpsertInstructor(ctx context.Context, instructor *model.Instructor) error
	CreateMaterial(ctx context.Context, material *model.Material) error

	// ── 封面模板 ──

	// GetDefaultTemplate 获取用户默认封面模板
	GetDefaultTemplate(ctx context.Context, userID string) (*model.TitleTemplate, error)
	GetTemplate(ctx context.Context, templateID string) (*model.TitleTemplate, error)
	CreateTemplate(ctx context.Context, tpl *model.TitleTemplate) error
	ListTemplates(ctx context.Context, userID string) ([]model.TitleTemplate, error)
	// SetDefaultTemplate 在同一事务内取消其他默认模板并设置新的默认模板，
	// 模板不属于该用户时返回 gorm.ErrRecordNotFound
	SetDefaultTemplate(ctx context.Context, userID, templateID string) error
}

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Instructor").
		Where("subject_id = ?", id).
		First(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepo) GetOrCreate(ctx context.Context, userID, name string) (*model.Subject, error) {
	subject := model.Subject{UserID: userID, Name: name}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		FirstOrCreate(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.db.WithContext(ctx).
		Preload("Instructor").
		Preload("Materials", func(db *gorm.DB) *gorm.DB {
			return db.Select("material_id", "subject_id", "file_name", "length(parsed_text) AS parsed_length", "created_at").
				Order("created_at ASC")
		}).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepo) UpsertInstructor(ctx context.Context, instructor *model.Instructor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "temperament", "preferences", "notes", "updated_at",
			}),
		}).
		Create(instructor).Error
}

func (r *subjectRepo) CreateMaterial(ctx context.Context, material *model.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *subjectRepo) GetDefaultTemplate(ctx context.Context, userID string) (*model.TitleTemplate, error) {
	var tpl model.TitleTemplate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		Order("updated_at DESC").
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *subjectRepo) GetTemplate(ctx context.Context, templateID string) (*model.TitleTemplate, error) {
	var tpl model.TitleTemplate
	err := r.db.WithContext(ctx).Where("template_id = ?", templateID).First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *subjectRepo) CreateTemplate(ctx context.Context, tpl *model.TitleTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *subjectRepo) ListTemplates(ctx context.Context, userID string) ([]model.TitleTemplate, error) {
	var templates []model.TitleTemplate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&templates).Error
	return templates, err
}

func (r *subjectRepo) SetDefaultTemplate(ctx context.Context, userID, templateID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&model.TitleTemplate{}).
			Where("user_id = ? AND is_default = ? AND template_id <> ?", userID, true, templateID).
			Updates(map[string]interface{}{"is_default": false, "updated_at": now}).Error; err != nil {
			return err
		}
		result := tx.Model(&model.TitleTemplate{}).
			Where("user_id = ? AND template_id = ?", userID, templateID).
			Updates(map[string]interface{}{"is_default": true, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
