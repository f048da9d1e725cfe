package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"deadline-desk/backend/internal/model"
)

// SchedulePatternRepository 周期课程表数据访问接口
type SchedulePatternRepository interface {
	// FindByKey 按对账唯一键查找，不存在返回 gorm.ErrRecordNotFound
	FindByKey(ctx context.Context, subjectID string, dayOfWeek int, startTime, classType string) (*model.SchedulePattern, error)
	Create(ctx context.Context, pattern *model.SchedulePattern) error
	Update(ctx context.Context, pattern *model.SchedulePattern) error
	// ListByUser 按 day_of_week, start_time 排序，预加载 Subject
	ListByUser(ctx context.Context, userID string) ([]model.SchedulePattern, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type schedulePatternRepo struct {
	db *gorm.DB
}

// NewSchedulePatternRepo 创建 SchedulePatternRepository 实例
func NewSchedulePatternRepo(db *gorm.DB) SchedulePatternRepository {
	return &schedulePatternRepo{db: db}
}

func (r *schedulePatternRepo) FindByKey(ctx context.Context, subjectID string, dayOfWeek int, startTime, classType string) (*model.SchedulePattern, error) {
	var pattern model.SchedulePattern
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND day_of_week = ? AND start_time = ? AND class_type = ?",
			subjectID, dayOfWeek, startTime, classType).
		First(&pattern).Error
	if err != nil {
		return nil, err
	}
	return &pattern, nil
}

func (r *schedulePatternRepo) Create(ctx context.Context, pattern *model.SchedulePattern) error {
	return r.db.WithContext(ctx).Omit("Subject").Create(pattern).Error
}

func (r *schedulePatternRepo) Update(ctx context.Context, pattern *model.SchedulePattern) error {
	return r.db.WithContext(ctx).Model(&model.SchedulePattern{}).
		Where("pattern_id = ?", pattern.PatternID).
		Updates(map[string]interface{}{
			"end_time":        pattern.EndTime,
			"room":            pattern.Room,
			"week_type":       pattern.WeekType,
			"instructor_name": pattern.InstructorName,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *schedulePatternRepo) ListByUser(ctx context.Context, userID string) ([]model.SchedulePattern, error) {
	var patterns []model.SchedulePattern
	err := r.db.WithContext(ctx).
		Joins("JOIN subjects ON subjects.subject_id = schedule_patterns.subject_id").
		Preload("Subject").
		Where("subjects.user_id = ?", userID).
		Order("schedule_patterns.day_of_week ASC, schedule_patterns.start_time ASC").
		Find(&patterns).Error
	return patterns, err
}

func (r *schedulePatternRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("subject_id IN (?)", r.db.Model(&model.Subject{}).Select("subject_id").Where("user_id = ?", userID)).
		Delete(&model.SchedulePattern{})
	return result.RowsAffected, result.Error
}
