package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"deadline-desk/backend/internal/model"
)

// DeadlineRepository 截止事项数据访问接口
type DeadlineRepository interface {
	Create(ctx context.Context, deadline *model.Deadline) error
	// GetByID 返回完整加载的截止事项：Subject → User / Instructor / Materials
	GetByID(ctx context.Context, id string) (*model.Deadline, error)
	ListUpcomingByUser(ctx context.Context, userID string, from time.Time) ([]model.Deadline, error)
	SetCompleted(ctx context.Context, id string, completed bool) error
	// Delete 删除截止事项，提醒与生成作业由外键级联删除
	Delete(ctx context.Context, id string) error
}

type deadlineRepo struct {
	db *gorm.DB
}

// NewDeadlineRepo 创建 DeadlineRepository 实例
func NewDeadlineRepo(db *gorm.DB) DeadlineRepository {
	return &deadlineRepo{db: db}
}

func (r *deadlineRepo) Create(ctx context.Context, deadline *model.Deadline) error {
	return r.db.WithContext(ctx).Omit("Subject").Create(deadline).Error
}

func (r *deadlineRepo) GetByID(ctx context.Context, id string) (*model.Deadline, error) {
	var deadline model.Deadline
	err := r.db.WithContext(ctx).
		Preload("Subject.User").
		Preload("Subject.Instructor").
		Preload("Subject.Materials", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("deadline_id = ?", id).
		First(&deadline).Error
	if err != nil {
		return nil, err
	}
	return &deadline, nil
}

func (r *deadlineRepo) ListUpcomingByUser(ctx context.Context, userID string, from time.Time) ([]model.Deadline, error) {
	var deadlines []model.Deadline
	err := r.db.WithContext(ctx).
		Joins("JOIN subjects ON subjects.subject_id = deadlines.subject_id").
		Preload("Subject").
		Where("subjects.user_id = ? AND deadlines.deadline_at >= ?", userID, from).
		Order("deadlines.deadline_at ASC").
		Find(&deadlines).Error
	return deadlines, err
}

func (r *deadlineRepo) SetCompleted(ctx context.Context, id string, completed bool) error {
	result := r.db.WithContext(ctx).Model(&model.Deadline{}).
		Where("deadline_id = ?", id).
		Updates(map[string]interface{}{
			"is_completed": completed,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *deadlineRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("deadline_id = ?", id).Delete(&model.Deadline{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
