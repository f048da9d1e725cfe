package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := Generation("render", fmt.Errorf("llm timeout"))
	wrapped := fmt.Errorf("work 1: %w", err)

	if !errors.Is(wrapped, ErrGeneration) {
		t.Error("期望匹配 ErrGeneration")
	}
	if errors.Is(wrapped, ErrDelivery) {
		t.Error("不应匹配 ErrDelivery")
	}
	if KindOf(wrapped) != KindGeneration {
		t.Errorf("期望 generation，实际 %s", KindOf(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Error("generation 错误应可重试")
	}
}

func TestInvalidTransitionNotRetryable(t *testing.T) {
	err := InvalidTransition("sent", "ready")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("期望匹配 ErrInvalidTransition")
	}
	if IsRetryable(err) {
		t.Error("状态机错误不可重试")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("未分类错误应返回空分类")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("deadline", "d-1")
	want := `deadline: not_found: deadline "d-1" 不存在`
	if err.Error() != want {
		t.Errorf("期望 %q，实际 %q", want, err.Error())
	}
}
