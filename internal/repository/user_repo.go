package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"deadline-desk/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	// ListWithICal 列出已配置日历源的用户
	ListWithICal(ctx context.Context) ([]model.User, error)
	UpdateLastScheduleSync(ctx context.Context, id string, at time.Time) error
	UpdateICalURL(ctx context.Context, id string, url string) error
	// UpdateProfile 更新资料字段，用户不存在时返回 gorm.ErrRecordNotFound
	UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListWithICal(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("ical_url IS NOT NULL AND ical_url <> ''").
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) UpdateLastScheduleSync(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"last_schedule_sync": at,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *userRepo) UpdateICalURL(ctx context.Context, id string, url string) error {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"ical_url":   url,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
