package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// Telegram 单条消息 / 说明文字长度上限（字符）
const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
)

// sender 机器人发送接口，便于测试替换
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier 通过 Telegram 机器人投递消息与文档，外部身份即 chat id
type Notifier struct {
	bot    sender
	logger *zap.Logger
}

// New 使用机器人令牌创建 Notifier
func New(cfg *config.TelegramConfig, logger *zap.Logger) (*Notifier, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("创建 Telegram 机器人失败: %w", err)
	}
	logger.Info("Telegram 机器人已连接", zap.String("username", bot.Self.UserName))
	return &Notifier{bot: bot, logger: logger}, nil
}

func newWithSender(s sender, logger *zap.Logger) *Notifier {
	return &Notifier{bot: s, logger: logger}
}

// Send 发送文本消息
func (n *Notifier) Send(ctx context.Context, externalID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Delivery("send message", err)
	}
	msg := tgbotapi.NewMessage(externalID, truncate(message, maxMessageRunes))
	if _, err := n.bot.Send(msg); err != nil {
		return pkgerrors.Delivery("send message", err)
	}
	return nil
}

// SendDocument 发送本地文件，artifactRef 为文件路径
func (n *Notifier) SendDocument(ctx context.Context, externalID int64, artifactRef, fileName, caption string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Delivery("send document", err)
	}
	f, err := os.Open(artifactRef)
	if err != nil {
		return pkgerrors.Delivery("open document", err)
	}
	defer f.Close()

	if fileName == "" {
		fileName = filepath.Base(artifactRef)
	}
	doc := tgbotapi.NewDocument(externalID, tgbotapi.FileReader{Name: fileName, Reader: f})
	doc.Caption = truncate(caption, maxCaptionRunes)

	if _, err := n.bot.Send(doc); err != nil {
		return pkgerrors.Delivery("send document", err)
	}
	n.logger.Debug("文档已发送", zap.Int64("chat_id", externalID), zap.String("file", fileName))
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// ── 日志通知器 ──

// ErrBotUnconfigured 未配置机器人令牌且未开启 dry_run
var ErrBotUnconfigured = errors.New("未配置 Telegram 机器人令牌")

// LogNotifier 未配置机器人时使用
// dryRun 开启时只记录日志并视为成功；关闭时返回 Delivery 错误，提醒与作业保持未发送
type LogNotifier struct {
	logger *zap.Logger
	dryRun bool
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger, dryRun bool) *LogNotifier {
	return &LogNotifier{logger: logger, dryRun: dryRun}
}

func (n *LogNotifier) Send(_ context.Context, externalID int64, message string) error {
	if !n.dryRun {
		n.logger.Warn("未配置机器人，消息未投递", zap.Int64("chat_id", externalID))
		return pkgerrors.Delivery("send message", ErrBotUnconfigured)
	}
	n.logger.Info("通知（dry run）", zap.Int64("chat_id", externalID), zap.String("message", message))
	return nil
}

func (n *LogNotifier) SendDocument(_ context.Context, externalID int64, artifactRef, fileName, caption string) error {
	if _, err := os.Stat(artifactRef); err != nil {
		return pkgerrors.Delivery("send document", err)
	}
	if !n.dryRun {
		n.logger.Warn("未配置机器人，文档未投递", zap.Int64("chat_id", externalID), zap.String("file", fileName))
		return pkgerrors.Delivery("send document", ErrBotUnconfigured)
	}
	n.logger.Info("文档通知（dry run）",
		zap.Int64("chat_id", externalID),
		zap.String("file", fileName),
		zap.String("path", artifactRef),
		zap.String("caption", caption),
	)
	return nil
}
