package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	"deadline-desk/backend/pkg/redis"
)

// ── 周期驱动调度 ────────────────────────────────────────────
//
// 四个驱动各自按 cron 表达式触发：
//   - reminders：派发到期提醒
//   - work_generate：恢复卡死项并生成到期作业
//   - work_send：发送已确认 / 自动发送的作业
//   - schedule_sync：同步全部用户日历源
//
// 同一驱动在本进程内不重叠（SkipIfStillRunning），跨进程由 Redis 锁互斥。
// 未连接 Redis 时 locker 为 nil，仅保证进程内互斥。
// ─────────────────────────────────────────────────────────────

const (
	JobReminders    = "reminders"
	JobWorkGenerate = "work_generate"
	JobWorkSend     = "work_send"
	JobScheduleSync = "schedule_sync"
)

var (
	ErrUnknownJob = errors.New("未知驱动")
	ErrJobExists  = errors.New("驱动已注册")
)

// Job 单次驱动执行
type Job func(ctx context.Context) (*dto.TickReport, error)

// Locker 跨进程互斥锁；锁被占用时返回 redis.ErrLockHeld
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// Scheduler 周期驱动调度器
type Scheduler struct {
	cron        *cron.Cron
	locker      Locker
	tickTimeout time.Duration
	lockTTL     time.Duration
	jobs        map[string]Job
	logger      *zap.Logger
}

// New 创建调度器，cron 表达式按 loc 解释
func New(cfg *config.SchedulerConfig, loc *time.Location, locker Locker, logger *zap.Logger) *Scheduler {
	cl := cronLogger{l: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:      locker,
		tickTimeout: cfg.TickTimeout,
		lockTTL:     cfg.LockTTL,
		jobs:        make(map[string]Job),
		logger:      logger,
	}
}

// Register 注册驱动；spec 为空时只登记，可通过 RunOnce 手动触发
func (s *Scheduler) Register(name, spec string, job Job) error {
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.tick(name, job) }); err != nil {
			return fmt.Errorf("驱动 %s 的 cron 表达式 %q 无效: %w", name, spec, err)
		}
	}
	s.jobs[name] = job
	s.logger.Info("驱动已注册", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RegisterDrivers 注册全部业务驱动
func RegisterDrivers(s *Scheduler, cfg *config.SchedulerConfig, svc *service.Service) error {
	drivers := []struct {
		name string
		spec string
		job  Job
	}{
		{JobReminders, cfg.ReminderSpec, svc.Reminder.DispatchDue},
		{JobWorkGenerate, cfg.WorkGenerateSpec, svc.Work.RunGenerateCheck},
		{JobWorkSend, cfg.WorkSendSpec, svc.Work.RunSendCheck},
		{JobScheduleSync, cfg.ScheduleSyncSpec, svc.Schedule.SyncAll},
	}
	for _, d := range drivers {
		if err := s.Register(d.name, d.spec, d.job); err != nil {
			return err
		}
	}
	return nil
}

// Jobs 已注册的驱动名（有序）
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunOnce 立即执行一次驱动，与定时触发共用同一把锁
func (s *Scheduler) RunOnce(ctx context.Context, name string) (*dto.TickReport, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, name, job)
}

// Start 启动定时触发
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("周期驱动已启动", zap.Strings("jobs", s.Jobs()))
}

// Stop 停止触发，并等待正在执行的驱动结束或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("周期驱动已停止")
	case <-ctx.Done():
		s.logger.Warn("等待驱动结束超时")
	}
}

func (s *Scheduler) tick(name string, job Job) {
	report, err := s.run(context.Background(), name, job)
	switch {
	case errors.Is(err, redis.ErrLockHeld):
		s.logger.Debug("驱动正由其他进程执行，跳过本轮", zap.String("job", name))
	case err != nil:
		s.logger.Error("驱动执行失败", zap.String("job", name), zap.Error(err))
	default:
		s.logger.Info("驱动执行完成",
			zap.String("job", name),
			zap.Int("processed", report.Processed),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) (*dto.TickReport, error) {
	if s.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	if s.locker != nil {
		release, err := s.locker.AcquireLock(ctx, name, s.lockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	start := time.Now()
	report, err := job(ctx)
	if err != nil {
		return nil, err
	}
	if report == nil {
		report = &dto.TickReport{}
	}
	if report.Driver == "" {
		report.Driver = name
	}
	s.logger.Debug("驱动耗时", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// ── cron 日志适配 ──

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
