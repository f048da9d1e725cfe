package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/dto"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── LLM 文本生成 ────────────────────────────────────────────
//
// 通过 OpenAI 兼容接口（默认 OpenRouter）生成：
//   - 提醒正文：temperature 0.7，最多 300 tokens
//   - 作业正文：temperature 0.7，最多 4000 tokens
//
// 所有失败统一包装为 Generation 类错误，由调用方决定降级或回滚。
// ─────────────────────────────────────────────────────────────

const (
	reminderMaxTokens = 300
	workMaxTokens     = 4000
	temperature       = 0.7
)

// Client 文本生成客户端
type Client struct {
	model  llms.Model
	logger *zap.Logger
}

// New 按配置创建 OpenAI 兼容客户端
func New(cfg *config.LLMConfig, logger *zap.Logger) (*Client, error) {
	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 LLM 客户端失败: %w", err)
	}
	return NewWithModel(model, logger), nil
}

// NewWithModel 使用已构造的模型创建客户端
func NewWithModel(model llms.Model, logger *zap.Logger) *Client {
	return &Client{model: model, logger: logger}
}

// GenerateReminder 生成截止事项提醒正文
func (c *Client) GenerateReminder(ctx context.Context, d dto.DeadlineContext, instructor *dto.InstructorContext) (string, error) {
	text, err := c.complete(ctx, reminderSystemPrompt, reminderPrompt(d, instructor), reminderMaxTokens)
	if err != nil {
		return "", pkgerrors.Generation("generate reminder", err)
	}
	return text, nil
}

// RenderWork 生成作业正文（不含封面）
func (c *Client) RenderWork(ctx context.Context, wc dto.WorkContext) (string, error) {
	text, err := c.complete(ctx, workSystemPrompt, workPrompt(wc), workMaxTokens)
	if err != nil {
		return "", pkgerrors.Generation("render work", err)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("模型未返回内容")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("模型返回空内容")
	}
	c.logger.Debug("LLM 生成完成", zap.Int("max_tokens", maxTokens), zap.Int("chars", len([]rune(text))))
	return text, nil
}

// ── 提示词 ──

const reminderSystemPrompt = `Ты помощник студента. Сгенерируй короткое и полезное напоминание о приближающемся дедлайне.

Напоминание должно включать:
1. Что за работа и когда сдавать
2. Что нужно подготовить (исходя из типа работы и заметок)
3. Советы по подготовке с учетом характера преподавателя (если есть информация)

Формат: краткий, информативный, без лишней воды. Максимум 3-4 предложения.`

const workSystemPrompt = `Ты профессиональный помощник для написания учебных работ.
Твоя задача - создавать качественные, структурированные и содержательные работы на основе предоставленных материалов.
Пиши грамотно, академическим стилем. Используй подзаголовки для структурирования текста.
Объем работы должен соответствовать её типу.`

func reminderPrompt(d dto.DeadlineContext, instructor *dto.InstructorContext) string {
	var b strings.Builder
	b.WriteString("Дедлайн:\n")
	fmt.Fprintf(&b, "- Предмет: %s\n", d.SubjectName)
	fmt.Fprintf(&b, "- Работа: %s\n", d.Title)
	fmt.Fprintf(&b, "- Тип: %s\n", d.WorkType)
	fmt.Fprintf(&b, "- Дата: %s\n", d.DeadlineAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "- Осталось: %s\n", d.TimeLeft)
	if d.Description != "" {
		fmt.Fprintf(&b, "- Описание: %s\n", d.Description)
	}

	if instructor != nil {
		b.WriteString("\nПреподаватель:\n")
		fmt.Fprintf(&b, "- Имя: %s\n", instructor.Name)
		if instructor.Temperament != "" {
			fmt.Fprintf(&b, "- Характер: %s\n", instructor.Temperament)
		}
		if instructor.Preferences != "" {
			fmt.Fprintf(&b, "- Предпочтения: %s\n", instructor.Preferences)
		}
		if instructor.Notes != "" {
			fmt.Fprintf(&b, "- Заметки: %s\n", instructor.Notes)
		}
	}
	return b.String()
}

func workPrompt(wc dto.WorkContext) string {
	workTitle := wc.WorkTypeName
	number := "не указан"
	if wc.WorkNumber != nil && *wc.WorkNumber > 0 {
		workTitle += fmt.Sprintf(" №%d", *wc.WorkNumber)
		number = fmt.Sprintf("%d", *wc.WorkNumber)
	}
	workTitle += ": " + wc.Title

	description := wc.Description
	if description == "" {
		description = "не указано"
	}

	materials := "Материалы не загружены"
	if len(wc.Materials) > 0 {
		parts := make([]string, 0, len(wc.Materials))
		for _, m := range wc.Materials {
			parts = append(parts, m.Text)
		}
		materials = strings.Join(parts, "\n\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Предмет: %s\n", wc.SubjectName)
	fmt.Fprintf(&b, "Тип работы: %s\n", wc.WorkTypeName)
	fmt.Fprintf(&b, "Номер работы: %s\n", number)
	fmt.Fprintf(&b, "Название: %s\n", wc.Title)
	fmt.Fprintf(&b, "Описание задания: %s\n\n", description)
	fmt.Fprintf(&b, "Материалы по предмету:\n%s\n\n", materials)
	if wc.Instructor != nil && wc.Instructor.Preferences != "" {
		fmt.Fprintf(&b, "Преподаватель (%s) обращает внимание на: %s\n\n", wc.Instructor.Name, wc.Instructor.Preferences)
	}
	fmt.Fprintf(&b, "Задача: Напиши полный текст работы \"%s\" по предмету \"%s\".\n\n", workTitle, wc.SubjectName)
	b.WriteString(`Требования к работе:
1. Работа должна быть структурированной (введение, основная часть, заключение)
2. Используй материалы предмета для наполнения контентом
3. Объем работы должен быть достаточным для типа работы (лабораторная - 3-5 страниц, реферат - 10-15 страниц, и т.д.)
4. Пиши академическим языком, но понятно
5. Добавь примеры и пояснения где уместно
6. Если есть формулы или расчеты - приведи их
7. В конце добавь список использованных источников (если применимо)

НЕ ДОБАВЛЯЙ титульный лист - он будет добавлен отдельно.
Начни сразу с содержания работы.
`)
	return b.String()
}
