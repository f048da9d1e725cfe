package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User            UserRepository
	Subject         SubjectRepository
	Deadline        DeadlineRepository
	Reminder        ReminderRepository
	Work            WorkRepository
	SchedulePattern SchedulePatternRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:            NewUserRepo(db),
		Subject:         NewSubjectRepo(db),
		Deadline:        NewDeadlineRepo(db),
		Reminder:        NewReminderRepo(db),
		Work:            NewWorkRepo(db),
		SchedulePattern: NewSchedulePatternRepo(db),
		db:              db,
	}
}

// Transaction 在单个数据库事务中执行 fn，fn 内通过 tx 访问的所有 Repository 共享该事务
// 未绑定数据库（测试中直接组装的聚合）时直接以自身执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
