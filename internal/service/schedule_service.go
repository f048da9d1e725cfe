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

// ── 课程表模块业务错误 ──

var (
	ErrScheduleNoFeedURL   = errors.New("未配置日历源")
	ErrScheduleFeedInvalid = errors.New("日历源地址必须以 http://、https:// 或 webcal:// 开头")
)

// 同步失败原因（写入 SyncResult.Error，面向客户端）
const (
	syncReasonNoURL       = "No iCal URL configured"
	syncReasonFetchFailed = "Failed to fetch iCal data"
	syncReasonParseFailed = "Failed to parse iCal data"
	syncReasonNoEvents    = "No events found in iCal"
)

// ── ScheduleService 接口 ────────────────────────────────────
//
// 设计说明：
//   - Sync 总是返回结构化结果；失败时同时返回分类错误（Fetch / Parse），
//     拉取与解析都在任何写入之前完成，失败不会改动已有课程。
//   - 对账在单个事务中完成：学科按名称获取或创建，课程按
//     (subject_id, day_of_week, start_time, class_type) 查找后新建或更新，
//     最后记录用户的同步时间。
//   - updated 只统计可变字段确实发生变化的行，未变化的课程源重复同步得到 0 / 0。
// ─────────────────────────────────────────────────────────────

// ScheduleService 课程表同步业务接口
type ScheduleService interface {
	// Sync 拉取用户日历源并对账周期课程
	Sync(ctx context.Context, userID string) (*dto.SyncResult, error)
	// SyncAll 同步所有已配置日历源的用户
	SyncAll(ctx context.Context) (*dto.TickReport, error)
	// SetFeedURL 设置用户日历源地址
	SetFeedURL(ctx context.Context, userID, url string) error
	ListPatterns(ctx context.Context, userID string) ([]dto.SchedulePatternResponse, error)
	// ClearPatterns 删除用户全部周期课程，返回删除数量
	ClearPatterns(ctx context.Context, userID string) (*dto.ClearPatternsResponse, error)
}

type scheduleService struct {
	repo   *repository.Repository
	clock  Clock
	collab Collaborators
	opts   Options
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, clock Clock, collab Collaborators, opts Options, logger *zap.Logger) ScheduleService {
	return &scheduleService{
		repo:   repo,
		clock:  clock,
		collab: collab,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// Sync — 拉取 → 解析 → 聚合 → 事务对账
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Sync(ctx context.Context, userID string) (*dto.SyncResult, error) {
	result := &dto.SyncResult{}

	// 0. 校验用户与日历源
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return result, pkgerrors.NotFound("user", userID)
		}
		return result, fmt.Errorf("查询用户失败: %w", err)
	}
	feedURL := strings.TrimSpace(derefString(user.ICalURL))
	if feedURL == "" {
		result.Error = syncReasonNoURL
		return result, ErrScheduleNoFeedURL
	}
	if s.collab.Calendar == nil {
		result.Error = syncReasonFetchFailed
		return result, pkgerrors.Fetch("fetch feed", errors.New("未配置日历拉取器"))
	}

	log := s.logger.With(zap.String("user_id", userID))

	// 1. 拉取
	callCtx, cancel := s.opts.callContext(ctx)
	raw, err := s.collab.Calendar.Fetch(callCtx, feedURL)
	cancel()
	if err != nil {
		log.Warn("拉取日历源失败", zap.Error(err))
		result.Error = syncReasonFetchFailed
		if pkgerrors.KindOf(err) == "" {
			err = pkgerrors.Fetch("fetch feed", err)
		}
		return result, err
	}
	if strings.TrimSpace(raw) == "" {
		result.Error = syncReasonFetchFailed
		return result, pkgerrors.Fetch("fetch feed", errors.New("日历源为空"))
	}

	// 2. 解析
	events, err := ParseFeed(raw, s.clock.Location())
	if err != nil {
		log.Warn("解析日历源失败", zap.Error(err))
		result.Error = syncReasonParseFailed
		return result, err
	}
	if len(events) == 0 {
		result.Error = syncReasonNoEvents
		return result, pkgerrors.Parse("parse feed", errors.New("日历源中没有课次"))
	}

	// 3. 聚合
	patterns := GroupEventsToPatterns(events)

	// 4. 对账（单事务）
	created, updated := 0, 0
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		created, updated = 0, 0
		subjects := make(map[string]string)
		for i := range patterns {
			p := &patterns[i]
			subjectID, ok := subjects[p.SubjectName]
			if !ok {
				subject, err := tx.Subject.GetOrCreate(ctx, userID, p.SubjectName)
				if err != nil {
					return fmt.Errorf("获取学科 %q 失败: %w", p.SubjectName, err)
				}
				subjectID = subject.SubjectID
				subjects[p.SubjectName] = subjectID
			}

			c, u, err := reconcilePattern(ctx, tx, subjectID, p)
			if err != nil {
				return err
			}
			created += c
			updated += u
		}
		// 5. 记录同步时间
		return tx.User.UpdateLastScheduleSync(ctx, userID, s.clock.Now())
	})
	if err != nil {
		log.Error("课程表对账失败", zap.Error(err))
		return result, fmt.Errorf("课程表对账失败: %w", err)
	}

	result.Success = true
	result.EventsParsed = len(events)
	result.PatternsFound = len(patterns)
	result.Created = created
	result.Updated = updated

	log.Info("课程表同步完成",
		zap.Int("events", result.EventsParsed),
		zap.Int("patterns", result.PatternsFound),
		zap.Int("created", created),
		zap.Int("updated", updated),
	)
	return result, nil
}

// reconcilePattern 新建或更新单条课程，返回 (created, updated) 计数
func reconcilePattern(ctx context.Context, tx *repository.Repository, subjectID string, p *FeedPattern) (int, int, error) {
	existing, err := tx.SchedulePattern.FindByKey(ctx, subjectID, p.DayOfWeek, p.StartTime, p.ClassType)
	if err != nil && !isNotFound(err) {
		return 0, 0, fmt.Errorf("查询课程失败: %w", err)
	}

	if existing == nil {
		pattern := &model.SchedulePattern{
			SubjectID:      subjectID,
			DayOfWeek:      p.DayOfWeek,
			StartTime:      p.StartTime,
			EndTime:        p.EndTime,
			Room:           p.Room,
			ClassType:      p.ClassType,
			WeekType:       p.WeekType,
			InstructorName: p.InstructorName,
		}
		if err := tx.SchedulePattern.Create(ctx, pattern); err != nil {
			return 0, 0, fmt.Errorf("创建课程失败: %w", err)
		}
		return 1, 0, nil
	}

	if !patternChanged(existing, p) {
		return 0, 0, nil
	}
	existing.EndTime = p.EndTime
	existing.Room = p.Room
	existing.WeekType = p.WeekType
	existing.InstructorName = p.InstructorName
	if err := tx.SchedulePattern.Update(ctx, existing); err != nil {
		return 0, 0, fmt.Errorf("更新课程失败: %w", err)
	}
	return 0, 1, nil
}

// patternChanged 可变字段（结束时间、教室、单双周、教师）是否与课程源不同
func patternChanged(existing *model.SchedulePattern, p *FeedPattern) bool {
	return existing.EndTime != p.EndTime ||
		existing.WeekType != p.WeekType ||
		derefString(existing.Room) != derefString(p.Room) ||
		derefString(existing.InstructorName) != derefString(p.InstructorName)
}

// ════════════════════════════════════════════════════════════
// SyncAll — 定时同步所有用户
// ════════════════════════════════════════════════════════════

func (s *scheduleService) SyncAll(ctx context.Context) (*dto.TickReport, error) {
	report := &dto.TickReport{Driver: "schedule_sync"}

	users, err := s.repo.User.ListWithICal(ctx)
	if err != nil {
		return report, fmt.Errorf("查询日历源用户失败: %w", err)
	}
	report.Processed = len(users)

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		res, err := s.Sync(ctx, u.UserID)
		if err != nil {
			s.logger.Warn("用户课程表同步失败",
				zap.String("user_id", u.UserID),
				zap.String("reason", res.Error),
				zap.Error(err),
			)
			report.Failed++
			continue
		}
		report.Succeeded++
	}
	return report, nil
}

// ════════════════════════════════════════════════════════════
// 日历源与课程管理
// ════════════════════════════════════════════════════════════

func (s *scheduleService) SetFeedURL(ctx context.Context, userID, url string) error {
	url = strings.TrimSpace(url)
	if !validFeedURL(url) {
		return ErrScheduleFeedInvalid
	}
	if err := s.repo.User.UpdateICalURL(ctx, userID, url); err != nil {
		if isNotFound(err) {
			return pkgerrors.NotFound("user", userID)
		}
		return fmt.Errorf("保存日历源失败: %w", err)
	}
	s.logger.Info("日历源已更新", zap.String("user_id", userID))
	return nil
}

func validFeedURL(url string) bool {
	lower := strings.ToLower(url)
	for _, prefix := range []string{"http://", "https://", "webcal://"} {
		if strings.HasPrefix(lower, prefix) && len(url) > len(prefix) {
			return true
		}
	}
	return false
}

func (s *scheduleService) ListPatterns(ctx context.Context, userID string) ([]dto.SchedulePatternResponse, error) {
	patterns, err := s.repo.SchedulePattern.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询课程表失败: %w", err)
	}
	out := make([]dto.SchedulePatternResponse, 0, len(patterns))
	for i := range patterns {
		out = append(out, toPatternResponse(&patterns[i]))
	}
	return out, nil
}

func (s *scheduleService) ClearPatterns(ctx context.Context, userID string) (*dto.ClearPatternsResponse, error) {
	deleted, err := s.repo.SchedulePattern.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("清空课程表失败: %w", err)
	}
	s.logger.Info("课程表已清空", zap.String("user_id", userID), zap.Int64("deleted", deleted))
	return &dto.ClearPatternsResponse{Deleted: deleted}, nil
}

func toPatternResponse(p *model.SchedulePattern) dto.SchedulePatternResponse {
	return dto.SchedulePatternResponse{
		ID:             p.PatternID,
		SubjectID:      p.SubjectID,
		SubjectName:    subjectName(p.Subject),
		DayOfWeek:      p.DayOfWeek,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		Room:           p.Room,
		ClassType:      p.ClassType,
		WeekType:       p.WeekType,
		InstructorName: p.InstructorName,
	}
}
