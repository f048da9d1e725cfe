package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deadline-desk/backend/internal/model"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ReminderRepository 提醒数据访问接口
type ReminderRepository interface {
	// CreateIfAbsent 按 (deadline_id, hours_before) 幂等插入，返回是否新建
	CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error)
	ListByDeadline(ctx context.Context, deadlineID string) ([]model.Reminder, error)
	// ListDue 列出 send_at <= now 且未发送的提醒，按 send_at 升序
	// 已完成的截止事项与关闭提醒的用户在 SQL 中过滤，limit 只作用于可投递的行
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	// MarkSent 仅在 is_sent = false 时写入，重复调用返回 ErrOptimisticLock
	MarkSent(ctx context.Context, id string, message string, sentAt time.Time) error

	// ── 用户提醒偏好 ──

	GetSettings(ctx context.Context, userID string) (*model.ReminderSettings, error)
	UpsertSettings(ctx context.Context, settings *model.ReminderSettings) error
}

type reminderRepo struct {
	db *gorm.DB
}

// NewReminderRepo 创建 ReminderRepository 实例
func NewReminderRepo(db *gorm.DB) ReminderRepository {
	return &reminderRepo{db: db}
}

func (r *reminderRepo) CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit("Deadline").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "deadline_id"}, {Name: "hours_before"}},
			DoNothing: true,
		}).
		Create(reminder)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *reminderRepo) ListByDeadline(ctx context.Context, deadlineID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := r.db.WithContext(ctx).
		Where("deadline_id = ?", deadlineID).
		Order("send_at ASC").
		Find(&reminders).Error
	return reminders, err
}

func (r *reminderRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var reminders []model.Reminder
	q := r.db.WithContext(ctx).
		Joins("JOIN deadlines ON deadlines.deadline_id = reminders.deadline_id").
		Joins("JOIN subjects ON subjects.subject_id = deadlines.subject_id").
		Joins("LEFT JOIN reminder_settings ON reminder_settings.user_id = subjects.user_id").
		Preload("Deadline.Subject.User").
		Preload("Deadline.Subject.Instructor").
		Where("reminders.is_sent = ? AND reminders.send_at <= ?", false, now).
		Where("deadlines.is_completed = ?", false).
		// 未保存过偏好的用户按默认开启处理
		Where("(reminder_settings.is_enabled IS NULL OR reminder_settings.is_enabled = ?)", true).
		Order("reminders.send_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reminders).Error
	return reminders, err
}

func (r *reminderRepo) MarkSent(ctx context.Context, id string, message string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("reminder_id = ? AND is_sent = ?", id, false).
		Updates(map[string]interface{}{
			"is_sent":    true,
			"message":    message,
			"sent_at":    sentAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *reminderRepo) GetSettings(ctx context.Context, userID string) (*model.ReminderSettings, error) {
	var settings model.ReminderSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertSettings 显式列出写入列，is_enabled = false 按原值插入
func (r *reminderRepo) UpsertSettings(ctx context.Context, settings *model.ReminderSettings) error {
	return r.db.WithContext(ctx).
		Select("user_id", "hours_before", "is_enabled", "created_at", "updated_at").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"hours_before", "is_enabled", "updated_at"}),
		}).
		Create(settings).Error
}
