package integration

import (
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/integration/docx"
	"deadline-desk/backend/internal/integration/ical"
	"deadline-desk/backend/internal/integration/llm"
	"deadline-desk/backend/internal/integration/telegram"
	"deadline-desk/backend/internal/service"
)

// WorkDocuments 组合 LLM 正文生成与 DOCX 构建，实现 service.DocumentGenerator
type WorkDocuments struct {
	*llm.Client
	*docx.Builder
}

// Build 按配置构造外部协作者
//   - 未配置 llm.api_key：Text 为 nil，提醒退回模板正文，作业生成将失败并回滚
//   - 未配置 telegram.bot_token：使用日志通知器
//
// guard 可为 nil（未连接 Redis）
func Build(cfg *config.Config, clock service.Clock, guard service.DeliveryGuard, logger *zap.Logger) (service.Collaborators, error) {
	collab := service.Collaborators{
		Calendar: ical.NewFetcher(&cfg.ICal, logger.Named("ical")),
		Guard:    guard,
	}

	builder := docx.NewBuilder(cfg.Storage.GeneratedDir, clock.Now, logger.Named("docx"))
	if cfg.LLM.APIKey != "" {
		client, err := llm.New(&cfg.LLM, logger.Named("llm"))
		if err != nil {
			return service.Collaborators{}, err
		}
		collab.Text = client
		collab.Document = &WorkDocuments{Client: client, Builder: builder}
	} else {
		logger.Warn("未配置 LLM API Key，提醒使用模板正文，作业无法自动生成")
		collab.Document = &WorkDocuments{Client: llm.NewWithModel(unconfiguredModel{}, logger.Named("llm")), Builder: builder}
	}

	if cfg.Telegram.BotToken != "" {
		notifier, err := telegram.New(&cfg.Telegram, logger.Named("telegram"))
		if err != nil {
			return service.Collaborators{}, err
		}
		collab.Notifier = notifier
	} else {
		if cfg.Telegram.DryRun {
			logger.Warn("未配置 Telegram 机器人令牌，dry_run 模式：通知仅写入日志")
		} else {
			logger.Warn("未配置 Telegram 机器人令牌，投递将失败并留待重试")
		}
		collab.Notifier = telegram.NewLogNotifier(logger.Named("telegram"), cfg.Telegram.DryRun)
	}
	return collab, nil
}
