package service

import (
	"context"
	"time"

	"deadline-desk/backend/internal/dto"
)

// ── 外部协作者接口 ──────────────────────────────────────────
//
// 调度核心只依赖以下窄接口，具体实现位于 internal/integration：
//   - TextGenerator / DocumentGenerator：LLM 文本与 DOCX 文档
//   - Notifier：Telegram 消息投递
//   - CalendarFetcher：远程 iCal 日历源
//   - DeliveryGuard：跨进程投递占位（Redis，可选）
//
// 实现返回 pkg/errors 分类错误（Generation / Delivery / Fetch），
// 调用方据此区分可重试失败与逻辑错误。
// ─────────────────────────────────────────────────────────────

// TextGenerator 提醒正文生成
type TextGenerator interface {
	GenerateReminder(ctx context.Context, deadline dto.DeadlineContext, instructor *dto.InstructorContext) (string, error)
}

// DocumentGenerator 作业正文生成与文档构建
type DocumentGenerator interface {
	RenderWork(ctx context.Context, work dto.WorkContext) (string, error)
	BuildDocument(ctx context.Context, req dto.DocumentRequest) (*dto.DocumentArtifact, error)
}

// ArtifactDiscarder 可选：DocumentGenerator 实现该接口时，未登记的文档会被删除
type ArtifactDiscarder interface {
	Discard(ctx context.Context, artifactRef string) error
}

// Notifier 面向用户外部身份的消息投递
type Notifier interface {
	Send(ctx context.Context, externalID int64, message string) error
	SendDocument(ctx context.Context, externalID int64, artifactRef, fileName, caption string) error
}

// CalendarFetcher 拉取远程日历源原文
type CalendarFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DeliveryGuard 投递占位：Claim 成功后才调用外部投递，失败时 Release
type DeliveryGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Collaborators 外部协作者集合，进程启动时构造一次并显式注入
type Collaborators struct {
	Text     TextGenerator
	Document DocumentGenerator
	Notifier Notifier
	Calendar CalendarFetcher
	Guard    DeliveryGuard // 可为 nil
}

// Options 调度核心运行参数
type Options struct {
	CallTimeout       time.Duration // 单次外部调用超时
	GeneratingTimeout time.Duration // generating 状态超过该时长视为卡死
	ClaimTTL          time.Duration // 投递占位有效期
	DispatchBatchSize int           // 单次提醒派发上限，0 表示不限
	TemplatesDir      string        // 封面模板上传目录
}

// withDefaults 补齐未配置的参数
func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 90 * time.Second
	}
	if o.GeneratingTimeout <= 0 {
		o.GeneratingTimeout = 30 * time.Minute
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = 10 * time.Minute
	}
	if o.TemplatesDir == "" {
		o.TemplatesDir = "./templates"
	}
	return o
}

// callContext 为单次外部调用派生带超时的 ctx
func (o Options) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.CallTimeout)
}
