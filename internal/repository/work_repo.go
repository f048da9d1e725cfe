package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deadline-desk/backend/internal/model"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// WorkRepository 生成作业数据访问接口
type WorkRepository interface {
	Create(ctx context.Context, work *model.GeneratedWork) error
	// GetByID 预加载 Deadline.Subject（User / Instructor / Materials）与封面模板
	GetByID(ctx context.Context, id string) (*model.GeneratedWork, error)
	GetByDeadline(ctx context.Context, deadlineID string) (*model.GeneratedWork, error)
	ListByUser(ctx context.Context, userID string) ([]model.GeneratedWork, error)
	// ListPending 列出 pending 状态且截止日期未过的作业
	ListPending(ctx context.Context, now time.Time) ([]model.GeneratedWork, error)
	// ListDueForSend 列出 ready|confirmed 且 scheduled_send_at <= now 的作业
	ListDueForSend(ctx context.Context, now time.Time) ([]model.GeneratedWork, error)
	// ListStuckGenerating 列出 generation_started_at 早于 before 的 generating 作业
	ListStuckGenerating(ctx context.Context, before time.Time) ([]model.GeneratedWork, error)
	// Transition 状态守卫式更新：仅当当前状态属于 from 时写入 to 与 updates
	// 未命中任何行返回 ErrOptimisticLock
	Transition(ctx context.Context, id string, from []model.WorkStatus, to model.WorkStatus, updates map[string]interface{}) error
	// UpdateFields 不改变状态的字段更新（发送时间、封面模板等）
	UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error

	// ── 用户作业偏好 ──

	GetSettings(ctx context.Context, userID string) (*model.UserWorkSettings, error)
	UpsertSettings(ctx context.Context, settings *model.UserWorkSettings) error
}

type workRepo struct {
	db *gorm.DB
}

// NewWorkRepo 创建 WorkRepository 实例
func NewWorkRepo(db *gorm.DB) WorkRepository {
	return &workRepo{db: db}
}

func (r *workRepo) Create(ctx context.Context, work *model.GeneratedWork) error {
	return r.db.WithContext(ctx).Omit("Deadline", "TitleTemplate").Create(work).Error
}

func (r *workRepo) withGraph(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Deadline.Subject.User").
		Preload("Deadline.Subject.Instructor").
		Preload("Deadline.Subject.Materials", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("TitleTemplate")
}

func (r *workRepo) GetByID(ctx context.Context, id string) (*model.GeneratedWork, error) {
	var work model.GeneratedWork
	err := r.withGraph(ctx).Where("work_id = ?", id).First(&work).Error
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepo) GetByDeadline(ctx context.Context, deadlineID string) (*model.GeneratedWork, error) {
	var work model.GeneratedWork
	err := r.withGraph(ctx).Where("deadline_id = ?", deadlineID).First(&work).Error
	if err != nil {
		return nil, err
	}
	return &work, nil
}

func (r *workRepo) ListByUser(ctx context.Context, userID string) ([]model.GeneratedWork, error) {
	var works []model.GeneratedWork
	err := r.db.WithContext(ctx).
		Joins("JOIN deadlines ON deadlines.deadline_id = generated_works.deadline_id").
		Joins("JOIN subjects ON subjects.subject_id = deadlines.subject_id").
		Preload("Deadline.Subject").
		Where("subjects.user_id = ?", userID).
		Order("deadlines.deadline_at ASC").
		Find(&works).Error
	return works, err
}

func (r *workRepo) ListPending(ctx context.Context, now time.Time) ([]model.GeneratedWork, error) {
	var works []model.GeneratedWork
	err := r.withGraph(ctx).
		Joins("JOIN deadlines ON deadlines.deadline_id = generated_works.deadline_id").
		Where("generated_works.status = ?", model.WorkStatusPending).
		Where("deadlines.deadline_at > ? AND deadlines.is_completed = ?", now, false).
		Order("deadlines.deadline_at ASC").
		Find(&works).Error
	return works, err
}

func (r *workRepo) ListDueForSend(ctx context.Context, now time.Time) ([]model.GeneratedWork, error) {
	var works []model.GeneratedWork
	err := r.withGraph(ctx).
		Where("status IN ?", []model.WorkStatus{model.WorkStatusReady, model.WorkStatusConfirmed}).
		Where("scheduled_send_at IS NOT NULL AND scheduled_send_at <= ?", now).
		Order("scheduled_send_at ASC").
		Find(&works).Error
	return works, err
}

func (r *workRepo) ListStuckGenerating(ctx context.Context, before time.Time) ([]model.GeneratedWork, error) {
	var works []model.GeneratedWork
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WorkStatusGenerating).
		Where("generation_started_at IS NULL OR generation_started_at < ?", before).
		Find(&works).Error
	return works, err
}

func (r *workRepo) Transition(ctx context.Context, id string, from []model.WorkStatus, to model.WorkStatus, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = to
	fields["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&model.GeneratedWork{}).
		Where("work_id = ? AND status IN ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *workRepo) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&model.GeneratedWork{}).
		Where("work_id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workRepo) GetSettings(ctx context.Context, userID string) (*model.UserWorkSettings, error) {
	var settings model.UserWorkSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertSettings 显式列出写入列，false / 0 按原值插入
func (r *workRepo) UpsertSettings(ctx context.Context, settings *model.UserWorkSettings) error {
	return r.db.WithContext(ctx).
		Select("user_id", "auto_generate", "generate_days_before", "require_confirmation",
			"default_send_days_before", "created_at", "updated_at").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"auto_generate", "generate_days_before", "require_confirmation",
				"default_send_days_before", "updated_at",
			}),
		}).
		Create(settings).Error
}
