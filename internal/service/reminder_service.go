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

// ── 提醒模块业务错误 ──

var (
	ErrReminderOffsetsEmpty  = errors.New("至少需要一个提醒时间点")
	ErrReminderOffsetInvalid = errors.New("提醒时间点必须在 1 小时到 30 天之间")
)

// ── ReminderService 接口 ────────────────────────────────────
//
// 设计说明：
//   - 规划（PlanForDeadline）只在截止事项创建时执行一次，
//     依赖 (deadline_id, hours_before) 唯一索引做幂等插入。
//   - 派发（DispatchDue）为至少一次语义：先投递后标记，
//     投递失败保持未发送留给下个周期；MarkSent 仅命中 is_sent = false 的行。
//   - 配置了 DeliveryGuard 时，投递前先占位，避免并发 tick 重复发送。
// ─────────────────────────────────────────────────────────────

// ReminderService 提醒规划与派发接口
type ReminderService interface {
	// PlanForDeadline 为截止事项持久化提醒，返回新建数量
	PlanForDeadline(ctx context.Context, deadline *model.Deadline, userID string) (int, error)
	// DispatchDue 派发所有到期未发送的提醒
	DispatchDue(ctx context.Context) (*dto.TickReport, error)
	GetSettings(ctx context.Context, userID string) (*dto.ReminderSettingsResponse, error)
	UpdateSettings(ctx context.Context, userID string, req *dto.UpdateReminderSettingsRequest) (*dto.ReminderSettingsResponse, error)
}

type reminderService struct {
	repo   *repository.Repository
	clock  Clock
	collab Collaborators
	opts   Options
	logger *zap.Logger
}

// NewReminderService 创建 ReminderService 实例
func NewReminderService(repo *repository.Repository, clock Clock, collab Collaborators, opts Options, logger *zap.Logger) ReminderService {
	return &reminderService{
		repo:   repo,
		clock:  clock,
		collab: collab,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// PlanForDeadline — 规划提醒
// ════════════════════════════════════════════════════════════

func (s *reminderService) PlanForDeadline(ctx context.Context, deadline *model.Deadline, userID string) (int, error) {
	settings, err := s.repo.Reminder.GetSettings(ctx, userID)
	if err != nil && !isNotFound(err) {
		return 0, fmt.Errorf("查询提醒偏好失败: %w", err)
	}

	planned := PlanReminders(deadline, settings, s.clock.Now())
	created := 0
	for i := range planned {
		ok, err := s.repo.Reminder.CreateIfAbsent(ctx, &planned[i])
		if err != nil {
			return created, fmt.Errorf("创建提醒失败: %w", err)
		}
		if ok {
			created++
		}
	}

	s.logger.Debug("提醒规划完成",
		zap.String("deadline_id", deadline.DeadlineID),
		zap.Int("planned", len(planned)),
		zap.Int("created", created),
	)
	return created, nil
}

// ════════════════════════════════════════════════════════════
// DispatchDue — 派发到期提醒
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 一次性加载到期提醒（含 Deadline → Subject → User / Instructor），
//      已关闭提醒的用户在查询中过滤，批量上限只计可投递的提醒
//   2. 逐条：占位 → 生成正文（失败降级为模板）→ 投递 → 标记已发送
//   单条失败只记录日志，不中断批次

func (s *reminderService) DispatchDue(ctx context.Context) (*dto.TickReport, error) {
	report := &dto.TickReport{Driver: "reminders"}
	now := s.clock.Now()

	due, err := s.repo.Reminder.ListDue(ctx, now, s.opts.DispatchBatchSize)
	if err != nil {
		return report, fmt.Errorf("查询到期提醒失败: %w", err)
	}
	report.Processed = len(due)

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		rem := &due[i]
		log := s.logger.With(zap.String("reminder_id", rem.ReminderID))

		user := reminderOwner(rem)
		if user == nil {
			log.Error("提醒缺少关联的截止事项或用户")
			report.Failed++
			continue
		}

		switch err := s.dispatchOne(ctx, rem, user); {
		case err == nil:
			report.Succeeded++
		case errors.Is(err, errAlreadyClaimed), errors.Is(err, pkgerrors.ErrOptimisticLock):
			report.Skipped++
		default:
			log.Warn("提醒派发失败，留待下个周期", zap.Error(err))
			report.Failed++
		}
	}

	return report, nil
}

var errAlreadyClaimed = errors.New("投递已被其他执行者占用")

func (s *reminderService) dispatchOne(ctx context.Context, rem *model.Reminder, user *model.User) error {
	claimKey := "reminder:" + rem.ReminderID
	if s.collab.Guard != nil {
		ok, err := s.collab.Guard.Claim(ctx, claimKey, s.opts.ClaimTTL)
		if err != nil {
			return pkgerrors.Delivery("claim", err)
		}
		if !ok {
			return errAlreadyClaimed
		}
	}

	message := s.renderMessage(ctx, rem)

	callCtx, cancel := s.opts.callContext(ctx)
	err := s.collab.Notifier.Send(callCtx, user.TelegramID, message)
	cancel()
	if err != nil {
		s.releaseClaim(claimKey)
		return pkgerrors.Delivery("send reminder", err)
	}

	// 投递成功后占位保留到过期，标记失败时阻止重复发送
	if err := s.repo.Reminder.MarkSent(ctx, rem.ReminderID, message, s.clock.Now()); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
		return fmt.Errorf("标记提醒已发送失败: %w", err)
	}
	return nil
}

// renderMessage 生成提醒正文；文本生成失败时降级为模板，不中断派发
func (s *reminderService) renderMessage(ctx context.Context, rem *model.Reminder) string {
	deadline := rem.Deadline
	timeLeft := TimeLeftLabel(rem.HoursBefore)
	dctx := dto.DeadlineContext{
		SubjectName: deadline.Subject.Name,
		Title:       deadline.Title,
		WorkType:    deadline.WorkType,
		WorkNumber:  deadline.WorkNumber,
		Description: derefString(deadline.Description),
		DeadlineAt:  deadline.DeadlineAt.In(s.clock.Location()),
		TimeLeft:    timeLeft,
	}

	body := ""
	if s.collab.Text != nil {
		callCtx, cancel := s.opts.callContext(ctx)
		text, err := s.collab.Text.GenerateReminder(callCtx, dctx, instructorContext(deadline.Subject))
		cancel()
		if err != nil {
			s.logger.Warn("提醒正文生成失败，使用模板",
				zap.String("reminder_id", rem.ReminderID), zap.Error(err))
		} else {
			body = strings.TrimSpace(text)
		}
	}
	if body == "" {
		body = fallbackReminderText(dctx)
	}
	return fmt.Sprintf("⏰ Напоминание (осталось %s):\n\n%s", timeLeft, body)
}

func fallbackReminderText(d dto.DeadlineContext) string {
	return fmt.Sprintf("Напоминание: %s по предмету %s - дедлайн %s!",
		d.Title, d.SubjectName, d.DeadlineAt.Format(displayDateLayout))
}

func (s *reminderService) releaseClaim(key string) {
	if s.collab.Guard == nil {
		return
	}
	// 释放不依赖可能已超时的 tick ctx
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
	defer cancel()
	if err := s.collab.Guard.Release(ctx, key); err != nil {
		s.logger.Warn("释放投递占位失败", zap.String("key", key), zap.Error(err))
	}
}

func reminderOwner(rem *model.Reminder) *model.User {
	if rem.Deadline == nil || rem.Deadline.Subject == nil {
		return nil
	}
	return rem.Deadline.Subject.User
}

func instructorContext(subject *model.Subject) *dto.InstructorContext {
	if subject == nil || subject.Instructor == nil {
		return nil
	}
	in := subject.Instructor
	return &dto.InstructorContext{
		Name:        in.Name,
		Temperament: derefString(in.Temperament),
		Preferences: derefString(in.Preferences),
		Notes:       derefString(in.Notes),
	}
}

// ════════════════════════════════════════════════════════════
// 提醒偏好
// ════════════════════════════════════════════════════════════

func (s *reminderService) GetSettings(ctx context.Context, userID string) (*dto.ReminderSettingsResponse, error) {
	settings, err := s.repo.Reminder.GetSettings(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return &dto.ReminderSettingsResponse{
				HoursBefore: append([]int(nil), DefaultReminderOffsets...),
				IsEnabled:   true,
			}, nil
		}
		return nil, fmt.Errorf("查询提醒偏好失败: %w", err)
	}
	return &dto.ReminderSettingsResponse{
		HoursBefore: []int(settings.HoursBefore),
		IsEnabled:   settings.IsEnabled,
	}, nil
}

func (s *reminderService) UpdateSettings(ctx context.Context, userID string, req *dto.UpdateReminderSettingsRequest) (*dto.ReminderSettingsResponse, error) {
	offsets, err := normalizeOffsets(req.HoursBefore)
	if err != nil {
		return nil, err
	}

	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	enabled := current.IsEnabled
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	settings := &model.ReminderSettings{
		UserID:      userID,
		HoursBefore: model.IntArray(offsets),
		IsEnabled:   enabled,
	}
	if err := s.repo.Reminder.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("保存提醒偏好失败: %w", err)
	}

	s.logger.Info("提醒偏好已更新",
		zap.String("user_id", userID),
		zap.Ints("hours_before", offsets),
		zap.Bool("enabled", enabled),
	)
	return &dto.ReminderSettingsResponse{HoursBefore: offsets, IsEnabled: enabled}, nil
}
