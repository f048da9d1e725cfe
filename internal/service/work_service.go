package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 作业模块业务错误 ──

var (
	ErrWorkAlreadyExists = errors.New("该截止事项已存在生成作业")
	ErrWorkNoArtifact    = errors.New("作业尚无可发送的文件")
	ErrWorkAlreadySent   = errors.New("作业已发送，无法修改发送时间")
	ErrWorkEmptyContent  = errors.New("生成结果为空")

	ErrWorkSettingsInvalid = errors.New("天数不能为负")
)

// 资料上下文上限
const (
	maxMaterials     = 5
	maxMaterialChars = 15000
)

// workTransitions 状态机允许的边
var workTransitions = map[model.WorkStatus][]model.WorkStatus{
	model.WorkStatusPending:    {model.WorkStatusGenerating},
	model.WorkStatusGenerating: {model.WorkStatusReady, model.WorkStatusPending},
	model.WorkStatusReady:      {model.WorkStatusConfirmed, model.WorkStatusSent, model.WorkStatusPending},
	model.WorkStatusConfirmed:  {model.WorkStatusSent, model.WorkStatusPending},
	model.WorkStatusSent:       {},
}

// CanTransition 判断 from → to 是否为允许的边
func CanTransition(from, to model.WorkStatus) bool {
	for _, next := range workTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ── WorkService 接口 ────────────────────────────────────────
//
// 设计说明：
//   - 所有状态写入都是守卫式条件更新（WHERE status = 当前状态），
//     行状态即串行化点：generate-check 与 send-check 并发时只有一方生效。
//   - 状态与其时间戳 / 产物引用在同一条 UPDATE 中写入。
//   - 任何生成失败都回滚到 pending；进程崩溃遗留的 generating
//     由 RecoverStuck 在超过 GeneratingTimeout 后重置。
//   - 用户操作遇到非法边返回 InvalidTransition；驱动遇到并发抢占则跳过。
// ─────────────────────────────────────────────────────────────

// WorkService 生成作业生命周期接口
type WorkService interface {
	// CreateForDeadline 为截止事项显式创建生成作业
	CreateForDeadline(ctx context.Context, userID string, req *dto.CreateWorkRequest) (*dto.WorkResponse, error)
	// EnsureForDeadline 按用户偏好自动创建；无需创建时返回 nil
	EnsureForDeadline(ctx context.Context, deadline *model.Deadline, userID string) (*model.GeneratedWork, error)
	Get(ctx context.Context, userID, workID string) (*dto.WorkResponse, error)
	ListByUser(ctx context.Context, userID string) ([]dto.WorkResponse, error)
	// StartGeneration 用户显式触发生成，不受 auto_generate 限制
	StartGeneration(ctx context.Context, userID, workID string) (*dto.WorkResponse, error)
	Confirm(ctx context.Context, userID, workID string) (*dto.WorkResponse, error)
	// Regenerate 丢弃现有产物并回到 pending
	Regenerate(ctx context.Context, userID, workID string) (*dto.WorkResponse, error)
	Reschedule(ctx context.Context, userID, workID string, req *dto.RescheduleWorkRequest) (*dto.WorkResponse, error)

	// RunGenerateCheck 周期驱动：恢复卡死项后生成到期的 pending 作业
	RunGenerateCheck(ctx context.Context) (*dto.TickReport, error)
	// RunSendCheck 周期驱动：发送到期的 confirmed / ready+auto_send 作业
	RunSendCheck(ctx context.Context) (*dto.TickReport, error)
	// RecoverStuck 将超时的 generating 作业重置为 pending，返回重置数量
	RecoverStuck(ctx context.Context) (int, error)

	GetSettings(ctx context.Context, userID string) (*dto.WorkSettingsResponse, error)
	UpdateSettings(ctx context.Context, userID string, req *dto.UpdateWorkSettingsRequest) (*dto.WorkSettingsResponse, error)
}

type workService struct {
	repo   *repository.Repository
	clock  Clock
	collab Collaborators
	opts   Options
	logger *zap.Logger
}

// NewWorkService 创建 WorkService 实例
func NewWorkService(repo *repository.Repository, clock Clock, collab Collaborators, opts Options, logger *zap.Logger) WorkService {
	return &workService{
		repo:   repo,
		clock:  clock,
		collab: collab,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// 创建
// ════════════════════════════════════════════════════════════

func (s *workService) CreateForDeadline(ctx context.Context, userID string, req *dto.CreateWorkRequest) (*dto.WorkResponse, error) {
	deadline, err := s.repo.Deadline.GetByID(ctx, req.DeadlineID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("deadline", req.DeadlineID)
		}
		return nil, fmt.Errorf("查询截止事项失败: %w", err)
	}
	if deadline.Subject == nil || deadline.Subject.UserID != userID {
		return nil, pkgerrors.NotFound("deadline", req.DeadlineID)
	}

	if _, err := s.repo.Work.GetByDeadline(ctx, deadline.DeadlineID); err == nil {
		return nil, ErrWorkAlreadyExists
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}

	if req.TitleTemplateID != nil {
		tpl, err := s.repo.Subject.GetTemplate(ctx, *req.TitleTemplateID)
		if err != nil || tpl.UserID != userID {
			return nil, pkgerrors.NotFound("title_template", *req.TitleTemplateID)
		}
	}

	settings, err := s.loadSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	work := newGeneratedWork(deadline, settings, req.TitleTemplateID, req.ScheduledSendAt)
	if err := s.repo.Work.Create(ctx, work); err != nil {
		return nil, fmt.Errorf("创建生成作业失败: %w", err)
	}

	s.logger.Info("生成作业已创建",
		zap.String("work_id", work.WorkID),
		zap.String("deadline_id", deadline.DeadlineID),
		zap.Bool("auto_send", work.AutoSend),
	)
	return s.toResponse(work), nil
}

func (s *workService) EnsureForDeadline(ctx context.Context, deadline *model.Deadline, userID string) (*model.GeneratedWork, error) {
	settings, found, err := s.findSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	hasTemplate := false
	if _, err := s.repo.Subject.GetDefaultTemplate(ctx, userID); err == nil {
		hasTemplate = true
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("查询默认封面模板失败: %w", err)
	}

	if !(found && settings.AutoGenerate) && !hasTemplate {
		return nil, nil
	}

	if existing, err := s.repo.Work.GetByDeadline(ctx, deadline.DeadlineID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}

	work := newGeneratedWork(deadline, settings, nil, nil)
	if err := s.repo.Work.Create(ctx, work); err != nil {
		return nil, fmt.Errorf("创建生成作业失败: %w", err)
	}
	return work, nil
}

// newGeneratedWork 按偏好填充创建默认值：
// require_confirmation = false 时 auto_send = true；
// 未指定发送时间时为 deadline − default_send_days_before 天
func newGeneratedWork(deadline *model.Deadline, settings *model.UserWorkSettings, templateID *string, sendAt *time.Time) *model.GeneratedWork {
	if sendAt == nil {
		at := deadline.DeadlineAt.Add(-time.Duration(settings.DefaultSendDaysBefore) * 24 * time.Hour)
		sendAt = &at
	}
	return &model.GeneratedWork{
		DeadlineID:      deadline.DeadlineID,
		Status:          model.WorkStatusPending,
		TitleTemplateID: templateID,
		ScheduledSendAt: sendAt,
		AutoSend:        !settings.RequireConfirmation,
	}
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *workService) Get(ctx context.Context, userID, workID string) (*dto.WorkResponse, error) {
	work, err := s.loadOwned(ctx, userID, workID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(work), nil
}

func (s *workService) ListByUser(ctx context.Context, userID string) ([]dto.WorkResponse, error) {
	works, err := s.repo.Work.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}
	list := make([]dto.WorkResponse, 0, len(works))
	for i := range works {
		list = append(list, *s.toResponse(&works[i]))
	}
	return list, nil
}

// ════════════════════════════════════════════════════════════
// 用户操作
// ════════════════════════════════════════════════════════════

func (s *workService) StartGeneration(ctx context.Context, userID, workID string) (*dto.WorkResponse, error) {
	work, err := s.loadOwned(ctx, userID, workID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(work.Status, model.WorkStatusGenerating) {
		return nil, pkgerrors.InvalidTransition(string(work.Status), string(model.WorkStatusGenerating))
	}
	if err := s.generate(ctx, work); err != nil {
		return nil, err
	}
	return s.reload(ctx, workID)
}

func (s *workService) Confirm(ctx context.Context, userID, workID string) (*dto.WorkResponse, error) {
	work, err := s.loadOwned(ctx, userID, workID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, work, model.WorkStatusConfirmed, map[string]interface{}{
		"confirmed_at": s.clock.Now(),
	}); err != nil {
		return nil, err
	}
	return s.reload(ctx, workID)
}

func (s *workService) Regenerate(ctx context.Context, userID, workID string) (*dto.WorkResponse, error) {
	work, err := s.loadOwned(ctx, userID, workID)
	if err != nil {
		return nil, err
	}
	if work.Status != model.WorkStatusReady && work.Status != model.WorkStatusConfirmed {
		return nil, pkgerrors.InvalidTransition(string(work.Status), string(model.WorkStatusPending))
	}
	if err := s.transition(ctx, work, model.WorkStatusPending, clearedArtifact()); err != nil {
		return nil, err
	}
	return s.reload(ctx, workID)
}

func (s *workService) Reschedule(ctx context.Context, userID, workID string, req *dto.RescheduleWorkRequest) (*dto.WorkResponse, error) {
	work, err := s.loadOwned(ctx, userID, workID)
	if err != nil {
		return nil, err
	}
	if work.Status == model.WorkStatusSent {
		return nil, ErrWorkAlreadySent
	}
	if err := s.repo.Work.UpdateFields(ctx, workID, map[string]interface{}{
		"scheduled_send_at": req.ScheduledSendAt,
	}); err != nil {
		return nil, fmt.Errorf("更新发送时间失败: %w", err)
	}
	return s.reload(ctx, workID)
}

// clearedArtifact 重新生成时清空产物引用、内容快照与生成 / 确认时间戳
func clearedArtifact() map[string]interface{} {
	return map[string]interface{}{
		"content_text":          nil,
		"file_name":             nil,
		"file_path":             nil,
		"generation_started_at": nil,
		"generated_at":          nil,
		"confirmed_at":          nil,
		"last_error":            nil,
	}
}

// ════════════════════════════════════════════════════════════
// RunGenerateCheck — 生成检查
// ════════════════════════════════════════════════════════════
//
// 条件：status = pending 且 auto_generate 开启
//       且 now >= deadline − generate_days_before 天

func (s *workService) RunGenerateCheck(ctx context.Context) (*dto.TickReport, error) {
	report := &dto.TickReport{Driver: "work_generate"}

	if _, err := s.RecoverStuck(ctx); err != nil {
		s.logger.Error("恢复卡死的生成作业失败", zap.Error(err))
	}

	now := s.clock.Now()
	pending, err := s.repo.Work.ListPending(ctx, now)
	if err != nil {
		return report, fmt.Errorf("查询待生成作业失败: %w", err)
	}
	report.Processed = len(pending)

	settingsByUser := make(map[string]*model.UserWorkSettings)
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		work := &pending[i]
		user := workOwner(work)
		if user == nil {
			s.logger.Error("生成作业缺少关联数据", zap.String("work_id", work.WorkID))
			report.Failed++
			continue
		}

		settings, ok := settingsByUser[user.UserID]
		if !ok {
			settings, err = s.loadSettings(ctx, user.UserID)
			if err != nil {
				s.logger.Warn("查询作业偏好失败", zap.String("user_id", user.UserID), zap.Error(err))
				report.Failed++
				continue
			}
			settingsByUser[user.UserID] = settings
		}

		if !generationDue(work.Deadline, settings, now) {
			report.Skipped++
			continue
		}

		switch err := s.generate(ctx, work); {
		case err == nil:
			report.Succeeded++
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			report.Skipped++
		default:
			s.logger.Warn("作业生成失败，已回到 pending", zap.String("work_id", work.WorkID), zap.Error(err))
			report.Failed++
		}
	}

	return report, nil
}

// generationDue now >= deadline − generate_days_before 且开启自动生成
func generationDue(deadline *model.Deadline, settings *model.UserWorkSettings, now time.Time) bool {
	if !settings.AutoGenerate {
		return false
	}
	threshold := deadline.DeadlineAt.Add(-time.Duration(settings.GenerateDaysBefore) * 24 * time.Hour)
	return !now.Before(threshold)
}

// generate pending → generating → ready；任何失败回到 pending
func (s *workService) generate(ctx context.Context, work *model.GeneratedWork) error {
	// 连续失败只在第一次通知用户，成功或重新生成会清空 last_error
	firstFailure := work.LastError == nil

	if err := s.transition(ctx, work, model.WorkStatusGenerating, map[string]interface{}{
		"generation_started_at": s.clock.Now(),
		"last_error":            nil,
	}); err != nil {
		return err
	}

	content, artifact, err := s.produce(ctx, work)
	if err != nil {
		s.rollbackGeneration(ctx, work, err)
		if firstFailure {
			s.notifyGenerationFailed(ctx, work)
		}
		if pkgerrors.KindOf(err) == "" {
			err = pkgerrors.Generation("generate work", err)
		}
		return err
	}

	if err := s.transition(ctx, work, model.WorkStatusReady, map[string]interface{}{
		"content_text": content,
		"file_name":    artifact.FileName,
		"file_path":    artifact.Ref,
		"generated_at": s.clock.Now(),
		"last_error":   nil,
	}); err != nil {
		// CAS 失败说明作业已被其他执行者接管，文件与状态归对方处理
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
		s.discardArtifact(ctx, work, artifact)
		s.rollbackGeneration(ctx, work, err)
		if firstFailure {
			s.notifyGenerationFailed(ctx, work)
		}
		return err
	}

	s.notifyWorkReady(ctx, work)
	return nil
}

// produce 调用外部协作者生成正文并构建文档
func (s *workService) produce(ctx context.Context, work *model.GeneratedWork) (string, *dto.DocumentArtifact, error) {
	if s.collab.Document == nil {
		return "", nil, pkgerrors.Generation("generate work", errors.New("未配置文档生成服务"))
	}
	deadline := work.Deadline
	subject := deadline.Subject
	user := subject.User

	callCtx, cancel := s.opts.callContext(ctx)
	content, err := s.collab.Document.RenderWork(callCtx, workContext(deadline))
	cancel()
	if err != nil {
		return "", nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil, pkgerrors.Generation("render work", ErrWorkEmptyContent)
	}

	templatePath, err := s.resolveTemplate(ctx, work, user.UserID)
	if err != nil {
		return "", nil, err
	}

	instructorName := ""
	if subject.Instructor != nil {
		instructorName = subject.Instructor.Name
	}
	req := dto.DocumentRequest{
		UserID:         user.UserID,
		DeadlineID:     deadline.DeadlineID,
		WorkType:       deadline.WorkType,
		Content:        content,
		TemplatePath:   templatePath,
		StudentName:    user.DisplayName(),
		GroupNumber:    derefString(user.GroupNumber),
		SubjectName:    subject.Name,
		InstructorName: instructorName,
		WorkTypeName:   WorkTypeName(deadline.WorkType),
		WorkNumber:     deadline.WorkNumber,
		Title:          deadline.Title,
		Year:           s.clock.Now().Year(),
	}

	callCtx, cancel = s.opts.callContext(ctx)
	artifact, err := s.collab.Document.BuildDocument(callCtx, req)
	cancel()
	if err != nil {
		return "", nil, err
	}
	return content, artifact, nil
}

// resolveTemplate 显式引用的模板优先，否则使用用户默认模板；都没有时返回空串
func (s *workService) resolveTemplate(ctx context.Context, work *model.GeneratedWork, userID string) (string, error) {
	if work.TitleTemplate != nil {
		return work.TitleTemplate.FilePath, nil
	}
	tpl, err := s.repo.Subject.GetDefaultTemplate(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("查询默认封面模板失败: %w", err)
	}
	return tpl.FilePath, nil
}

// rollbackGeneration generating → pending，不保留任何部分产物
// tick ctx 可能已超时，回滚使用独立的超时 ctx
func (s *workService) rollbackGeneration(ctx context.Context, work *model.GeneratedWork, cause error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CallTimeout)
	defer cancel()

	updates := clearedArtifact()
	updates["last_error"] = cause.Error()
	if err := s.transition(rctx, work, model.WorkStatusPending, updates); err != nil {
		s.logger.Error("生成失败后回滚状态失败", zap.String("work_id", work.WorkID), zap.Error(err))
	}
}

// discardArtifact 删除未能登记到作业上的文档
func (s *workService) discardArtifact(ctx context.Context, work *model.GeneratedWork, artifact *dto.DocumentArtifact) {
	discarder, ok := s.collab.Document.(ArtifactDiscarder)
	if !ok || artifact == nil || artifact.Ref == "" {
		return
	}
	if err := discarder.Discard(context.WithoutCancel(ctx), artifact.Ref); err != nil {
		s.logger.Warn("删除未登记的文档失败", zap.String("work_id", work.WorkID), zap.String("ref", artifact.Ref), zap.Error(err))
	}
}

// ════════════════════════════════════════════════════════════
// RunSendCheck — 发送检查
// ════════════════════════════════════════════════════════════
//
// confirmed 且到期：无条件发送
// ready 且到期：仅 auto_send = true 时跳过确认直接发送
// 投递失败保持原状态，下个周期重试

func (s *workService) RunSendCheck(ctx context.Context) (*dto.TickReport, error) {
	report := &dto.TickReport{Driver: "work_send"}
	now := s.clock.Now()

	due, err := s.repo.Work.ListDueForSend(ctx, now)
	if err != nil {
		return report, fmt.Errorf("查询待发送作业失败: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		work := &due[i]
		if !sendable(work, now) {
			continue
		}
		report.Processed++

		switch err := s.send(ctx, work); {
		case err == nil:
			report.Succeeded++
		case errors.Is(err, errAlreadyClaimed), errors.Is(err, pkgerrors.ErrOptimisticLock):
			report.Skipped++
		default:
			s.logger.Warn("作业发送失败，保持原状态", zap.String("work_id", work.WorkID), zap.Error(err))
			report.Failed++
		}
	}

	return report, nil
}

// sendable confirmed 或 ready+auto_send，且 scheduled_send_at <= now
func sendable(work *model.GeneratedWork, now time.Time) bool {
	if work.ScheduledSendAt == nil || work.ScheduledSendAt.After(now) {
		return false
	}
	switch work.Status {
	case model.WorkStatusConfirmed:
		return true
	case model.WorkStatusReady:
		return work.AutoSend
	}
	return false
}

func (s *workService) send(ctx context.Context, work *model.GeneratedWork) error {
	user := workOwner(work)
	if user == nil {
		return pkgerrors.NotFound("user", "work:"+work.WorkID)
	}
	if work.FilePath == nil || *work.FilePath == "" {
		return ErrWorkNoArtifact
	}

	claimKey := "work:" + work.WorkID
	if s.collab.Guard != nil {
		ok, err := s.collab.Guard.Claim(ctx, claimKey, s.opts.ClaimTTL)
		if err != nil {
			return pkgerrors.Delivery("claim", err)
		}
		if !ok {
			return errAlreadyClaimed
		}
	}

	callCtx, cancel := s.opts.callContext(ctx)
	err := s.collab.Notifier.SendDocument(callCtx, user.TelegramID, *work.FilePath, derefString(work.FileName), s.sendCaption(work.Deadline))
	cancel()
	if err != nil {
		s.releaseClaim(claimKey)
		return pkgerrors.Delivery("send work", err)
	}

	return s.transition(ctx, work, model.WorkStatusSent, map[string]interface{}{
		"sent_at": s.clock.Now(),
	})
}

// ════════════════════════════════════════════════════════════
// RecoverStuck — 恢复卡死的 generating
// ════════════════════════════════════════════════════════════

func (s *workService) RecoverStuck(ctx context.Context) (int, error) {
	before := s.clock.Now().Add(-s.opts.GeneratingTimeout)
	stuck, err := s.repo.Work.ListStuckGenerating(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("查询卡死作业失败: %w", err)
	}

	recovered := 0
	for i := range stuck {
		work := &stuck[i]
		updates := clearedArtifact()
		updates["last_error"] = "生成超时，已重置"
		if err := s.transition(ctx, work, model.WorkStatusPending, updates); err != nil {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Warn("重置卡死作业失败", zap.String("work_id", work.WorkID), zap.Error(err))
			}
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Warn("已重置卡死的生成作业", zap.Int("count", recovered))
	}
	return recovered, nil
}

// ════════════════════════════════════════════════════════════
// 作业偏好
// ════════════════════════════════════════════════════════════

func (s *workService) GetSettings(ctx context.Context, userID string) (*dto.WorkSettingsResponse, error) {
	settings, err := s.loadSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toWorkSettingsResponse(settings), nil
}

func (s *workService) UpdateSettings(ctx context.Context, userID string, req *dto.UpdateWorkSettingsRequest) (*dto.WorkSettingsResponse, error) {
	settings, err := s.loadSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.AutoGenerate != nil {
		settings.AutoGenerate = *req.AutoGenerate
	}
	if req.GenerateDaysBefore != nil {
		settings.GenerateDaysBefore = *req.GenerateDaysBefore
	}
	if req.RequireConfirmation != nil {
		settings.RequireConfirmation = *req.RequireConfirmation
	}
	if req.DefaultSendDaysBefore != nil {
		settings.DefaultSendDaysBefore = *req.DefaultSendDaysBefore
	}
	if settings.GenerateDaysBefore < 0 || settings.DefaultSendDaysBefore < 0 {
		return nil, ErrWorkSettingsInvalid
	}

	if err := s.repo.Work.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("保存作业偏好失败: %w", err)
	}
	s.logger.Info("作业偏好已更新", zap.String("user_id", userID), zap.Bool("auto_generate", settings.AutoGenerate))
	return toWorkSettingsResponse(settings), nil
}

// findSettings 返回用户偏好；未配置时返回默认值且 found = false
func (s *workService) findSettings(ctx context.Context, userID string) (*model.UserWorkSettings, bool, error) {
	settings, err := s.repo.Work.GetSettings(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return model.DefaultUserWorkSettings(userID), false, nil
		}
		return nil, false, fmt.Errorf("查询作业偏好失败: %w", err)
	}
	return settings, true, nil
}

func (s *workService) loadSettings(ctx context.Context, userID string) (*model.UserWorkSettings, error) {
	settings, _, err := s.findSettings(ctx, userID)
	return settings, err
}

// ════════════════════════════════════════════════════════════
// 内部辅助
// ════════════════════════════════════════════════════════════

// transition 校验边后执行守卫式更新
// 并发抢占时返回同时匹配 ErrInvalidTransition 与 ErrOptimisticLock 的错误
func (s *workService) transition(ctx context.Context, work *model.GeneratedWork, to model.WorkStatus, updates map[string]interface{}) error {
	from := work.Status
	if !CanTransition(from, to) {
		return pkgerrors.InvalidTransition(string(from), string(to))
	}
	if err := s.repo.Work.Transition(ctx, work.WorkID, []model.WorkStatus{from}, to, updates); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return pkgerrors.New(pkgerrors.KindInvalidTransition, "transition",
				fmt.Errorf("%w: %s → %s", err, from, to))
		}
		return fmt.Errorf("更新作业状态失败: %w", err)
	}
	work.Status = to

	s.logger.Info("作业状态变更",
		zap.String("work_id", work.WorkID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

func (s *workService) loadOwned(ctx context.Context, userID, workID string) (*model.GeneratedWork, error) {
	work, err := s.repo.Work.GetByID(ctx, workID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NotFound("work", workID)
		}
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}
	if owner := workOwner(work); owner == nil || owner.UserID != userID {
		return nil, pkgerrors.NotFound("work", workID)
	}
	return work, nil
}

func (s *workService) reload(ctx context.Context, workID string) (*dto.WorkResponse, error) {
	work, err := s.repo.Work.GetByID(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("查询生成作业失败: %w", err)
	}
	return s.toResponse(work), nil
}

func (s *workService) releaseClaim(key string) {
	if s.collab.Guard == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
	defer cancel()
	if err := s.collab.Guard.Release(ctx, key); err != nil {
		s.logger.Warn("释放投递占位失败", zap.String("key", key), zap.Error(err))
	}
}

// ── 通知（尽力而为，失败不影响状态）──

func (s *workService) notifyWorkReady(ctx context.Context, work *model.GeneratedWork) {
	d := work.Deadline
	msg := fmt.Sprintf("✅ Работа готова!\n\n📚 %s\n📝 %s: %s\n📅 Дедлайн: %s\n\n"+
		"Подтвердите отправку или запросите перегенерацию.",
		d.Subject.Name, workTitle(d), d.Title, d.DeadlineAt.In(s.clock.Location()).Format(displayDateLayout))
	s.notify(ctx, work, msg)
}

func (s *workService) notifyGenerationFailed(ctx context.Context, work *model.GeneratedWork) {
	d := work.Deadline
	msg := fmt.Sprintf("❌ Не удалось сгенерировать работу\n\n📚 %s\n📝 %s: %s\n\n"+
		"Попробуем снова при следующей проверке.",
		d.Subject.Name, workTitle(d), d.Title)
	s.notify(ctx, work, msg)
}

func (s *workService) notify(ctx context.Context, work *model.GeneratedWork, msg string) {
	user := workOwner(work)
	if user == nil || s.collab.Notifier == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CallTimeout)
	defer cancel()
	if err := s.collab.Notifier.Send(callCtx, user.TelegramID, msg); err != nil {
		s.logger.Warn("作业通知发送失败", zap.String("work_id", work.WorkID), zap.Error(err))
	}
}

func (s *workService) sendCaption(d *model.Deadline) string {
	return fmt.Sprintf("📤 Готовая работа\n\n📚 %s\n📝 %s: %s\n📅 Дедлайн: %s",
		d.Subject.Name, workTitle(d), d.Title, d.DeadlineAt.In(s.clock.Location()).Format(displayDateLayout))
}

func workOwner(work *model.GeneratedWork) *model.User {
	if work.Deadline == nil || work.Deadline.Subject == nil {
		return nil
	}
	return work.Deadline.Subject.User
}

// workContext 组装作业正文生成上下文，资料最多 5 份、合计不超过 15000 字符
func workContext(d *model.Deadline) dto.WorkContext {
	wc := dto.WorkContext{
		SubjectName:  d.Subject.Name,
		WorkType:     d.WorkType,
		WorkTypeName: WorkTypeName(d.WorkType),
		WorkNumber:   d.WorkNumber,
		Title:        d.Title,
		Description:  derefString(d.Description),
		DeadlineAt:   d.DeadlineAt,
		Instructor:   instructorContext(d.Subject),
	}

	budget := maxMaterialChars
	for _, m := range d.Subject.Materials {
		if len(wc.Materials) >= maxMaterials || budget <= 0 {
			break
		}
		text := strings.TrimSpace(derefString(m.ParsedText))
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > budget {
			text = string(runes[:budget]) + "\n...[материалы сокращены]"
			runes = runes[:budget]
		}
		budget -= len(runes)
		wc.Materials = append(wc.Materials, dto.MaterialContext{FileName: m.FileName, Text: text})
	}
	return wc
}

func (s *workService) toResponse(w *model.GeneratedWork) *dto.WorkResponse {
	return workResponse(w, s.clock.Location())
}

func workResponse(w *model.GeneratedWork, loc *time.Location) *dto.WorkResponse {
	return &dto.WorkResponse{
		ID:              w.WorkID,
		DeadlineID:      w.DeadlineID,
		Status:          string(w.Status),
		TitleTemplateID: w.TitleTemplateID,
		FileName:        w.FileName,
		ScheduledSendAt: formatTimePtr(w.ScheduledSendAt, loc),
		AutoSend:        w.AutoSend,
		GeneratedAt:     formatTimePtr(w.GeneratedAt, loc),
		ConfirmedAt:     formatTimePtr(w.ConfirmedAt, loc),
		SentAt:          formatTimePtr(w.SentAt, loc),
		LastError:       w.LastError,
	}
}

func toWorkSettingsResponse(s *model.UserWorkSettings) *dto.WorkSettingsResponse {
	return &dto.WorkSettingsResponse{
		AutoGenerate:          s.AutoGenerate,
		GenerateDaysBefore:    s.GenerateDaysBefore,
		RequireConfirmation:   s.RequireConfirmation,
		DefaultSendDaysBefore: s.DefaultSendDaysBefore,
	}
}
