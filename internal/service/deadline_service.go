package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 截止事项模块业务错误 ──

var (
	ErrDeadlineInPast       = errors.New("截止时间必须晚于当前时间")
	ErrDeadlineSubjectEmpty = errors.New("学科名称不能为空")
)

// DeadlineService 截止事项业务接口
//
// 创建时依次：获取或创建学科 → 保存截止事项 → 规划提醒 → 按偏好创建生成作业。
// 提醒规划或作业创建失败只记录日志，截止事项本身已保存。
type DeadlineService interface {
	Create(ctx context.Context, userID string, req *dto.CreateDeadlineRequest) (*dto.DeadlineResponse, error)
	Get(ctx context.Context, userID, deadlineID string) (*dto.DeadlineResponse, error)
	// ListUpcoming 列出尚未到期的截止事项
	ListUpcoming(ctx context.Context, userID string) ([]dto.DeadlineResponse, error)
	SetCompleted(ctx context.Context, userID, deadlineID string, completed bool) (*dto.DeadlineResponse, error)
	// Delete 删除截止事项，提醒与生成作业随之级联删除
	Delete(ctx context.Context, userID, deadlineID string) error
}

type deadlineService struct {
	repo      *repository.Repository
	clock     Clock
	reminders ReminderService
	works     WorkService
	logger    *zap.Logger
}

// NewDeadlineService 创建 DeadlineService 实例
func NewDeadlineService(repo *repository.Repository, clock Clock, reminders ReminderService, works WorkService, logger *zap.Logger) DeadlineService {
	return &deadlineService{
		repo:      repo,
		clock:     clock,
		reminders: reminders,
		works:     works,
		logger:    logger,
	}
}

func (s *deadlineService) Create(ctx context.Context, userID string, req *dto.CreateDeadlineRequest) (*dto.DeadlineResponse, error) {
	subjectName := strings.TrimSpace(req.SubjectName)
	if subjectName == "" {
		return nil, ErrDeadlineSubjectEmpty
	}
	if !req.DeadlineAt.After(s.clock.Now()) {
		return nil, ErrDeadlineInPast
	}

	// 1. 学科
	subject, err := s.repo.Subject.GetOrCreate(ctx, userID, subjectName)
	if err != nil {
		return nil, fmt.Errorf("获取学科失败: %w", err)
	}

	// 2. 截止事项
	deadline := &model.Deadline{
		SubjectID:   subject.SubjectID,
		Title:       strings.TrimSpace(req.Title),
		WorkType:    req.WorkType,
		WorkNumber:  req.WorkNumber,
		Description: req.Description,
		DeadlineAt:  req.DeadlineAt,
	}
	if err := s.repo.Deadline.Create(ctx, deadline); err != nil {
		return nil, fmt.Errorf("创建截止事项失败: %w", err)
	}
	deadline.Subject = subject

	log := s.logger.With(zap.String("deadline_id", deadline.DeadlineID))

	// 3. 提醒
	if _, err := s.reminders.PlanForDeadline(ctx, deadline, userID); err != nil {
		log.Error("规划提醒失败", zap.Error(err))
	}

	// 4. 生成作业
	if _, err := s.works.EnsureForDeadline(ctx, deadline, userID); err != nil {
		log.Error("创建生成作业失败", zap.Error(err))
	}

	log.Info("截止事项已创建", zap.String("user_id", userID), zap.Time("deadline_at", deadline.DeadlineAt))
	return s.Get(ctx, userID, deadline.DeadlineID)
}

func (s *deadlineService) Get(ctx context.Context, userID, deadlineID string) (*dto.DeadlineResponse, error) {
	deadline, err := s.loadOwned(ctx, userID, deadlineID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(deadline)

	reminders, err := s.repo.Reminder.ListByDeadline(ctx, deadlineID)
	if err != nil {
		return nil, fmt.Errorf("查询提醒失败: %w", err)
	}
	loc := s.clock.Location()
	for _, r := range reminders {
		resp.Reminders = append(resp.Reminders, dto.ReminderResponse{
			ID:          r.ReminderID,
			HoursBefore: r.HoursBefore,
			SendAt:      formatTime(r.SendAt, loc),
			IsSent:      r.IsSent,
			SentAt:      formatTimePtr(r.SentAt, loc),
		})
	}

	work, err := s.repo.Work.GetByDeadline(ctx, deadlineID)
	switch {
	case err == nil:
		resp.Work = workResponse(work, loc)
	case !isNotFound(err):
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}
	return resp, nil
}

func (s *deadlineService) ListUpcoming(ctx context.Context, userID string) ([]dto.DeadlineResponse, error) {
	deadlines, err := s.repo.Deadline.ListUpcomingByUser(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("查询截止事项失败: %w", err)
	}
	list := make([]dto.DeadlineResponse, 0, len(deadlines))
	for i := range deadlines {
		list = append(list, *s.toResponse(&deadlines[i]))
	}
	return list, nil
}

func (s *deadlineService) SetCompleted(ctx context.Context, userID, deadlineID string, completed bool) (*dto.DeadlineResponse, error) {
	if _, err := s.loadOwned(ctx, userID, deadlineID); err != nil {
		return nil, err
	}
	if err := s.repo.Deadline.SetCompleted(ctx, deadlineID, completed); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("deadline", deadlineID)
		}
		return nil, fmt.Errorf("更新完成状态失败: %w", err)
	}
	s.logger.Info("截止事项完成状态已更新", zap.String("deadline_id", deadlineID), zap.Bool("completed", completed))
	return s.Get(ctx, userID, deadlineID)
}

func (s *deadlineService) Delete(ctx context.Context, userID, deadlineID string) error {
	if _, err := s.loadOwned(ctx, userID, deadlineID); err != nil {
		return err
	}
	if err := s.repo.Deadline.Delete(ctx, deadlineID); err != nil {
		if isNotFound(err) {
			return pkgerrors.NotFound("deadline", deadlineID)
		}
		return fmt.Errorf("删除截止事项失败: %w", err)
	}
	s.logger.Info("截止事项已删除", zap.String("deadline_id", deadlineID))
	return nil
}

// loadOwned 不属于该用户的截止事项同样视为不存在
func (s *deadlineService) loadOwned(ctx context.Context, userID, deadlineID string) (*model.Deadline, error) {
	deadline, err := s.repo.Deadline.GetByID(ctx, deadlineID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("deadline", deadlineID)
		}
		return nil, fmt.Errorf("查询截止事项失败: %w", err)
	}
	if deadline.Subject == nil || deadline.Subject.UserID != userID {
		return nil, pkgerrors.NotFound("deadline", deadlineID)
	}
	return deadline, nil
}

func (s *deadlineService) toResponse(d *model.Deadline) *dto.DeadlineResponse {
	return &dto.DeadlineResponse{
		ID:          d.DeadlineID,
		SubjectID:   d.SubjectID,
		SubjectName: subjectName(d.Subject),
		Title:       d.Title,
		WorkType:    d.WorkType,
		WorkNumber:  d.WorkNumber,
		Description: d.Description,
		DeadlineAt:  formatTime(d.DeadlineAt, s.clock.Location()),
		IsCompleted: d.IsCompleted,
	}
}
