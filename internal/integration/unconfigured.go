package integration

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

var errLLMUnconfigured = errors.New("未配置 LLM API Key")

// unconfiguredModel 未配置 LLM 时的占位模型，所有调用直接失败
type unconfiguredModel struct{}

func (unconfiguredModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errLLMUnconfigured
}

func (unconfiguredModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errLLMUnconfigured
}
