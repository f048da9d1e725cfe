package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
// 状态守卫式更新（UPDATE ... WHERE status IN (...)）未命中任何行时返回
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// Kind 错误分类，用于区分可重试的外部失败与调用方逻辑错误
type Kind string

const (
	KindFetch             Kind = "fetch"              // 网络 / 日历源不可达
	KindParse             Kind = "parse"              // 日历源格式错误
	KindGeneration        Kind = "generation"         // 文本 / 文档生成失败
	KindDelivery          Kind = "delivery"           // 消息投递失败
	KindInvalidTransition Kind = "invalid_transition" // 状态机边不允许
	KindNotFound          Kind = "not_found"          // 引用的记录不存在
)

// 分类哨兵值，配合 errors.Is 使用：errors.Is(err, ErrGeneration)
var (
	ErrFetch             = &Error{Kind: KindFetch}
	ErrParse             = &Error{Kind: KindParse}
	ErrGeneration        = &Error{Kind: KindGeneration}
	ErrDelivery          = &Error{Kind: KindDelivery}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// Error 带分类的业务错误
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同分类即视为匹配（哨兵值不带 Op/Err）
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New 创建分类错误
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fetch / Parse / Generation / Delivery / NotFound 快捷构造

func Fetch(op string, err error) error      { return New(KindFetch, op, err) }
func Parse(op string, err error) error      { return New(KindParse, op, err) }
func Generation(op string, err error) error { return New(KindGeneration, op, err) }
func Delivery(op string, err error) error   { return New(KindDelivery, op, err) }

// NotFound 引用的实体不存在
func NotFound(entity, id string) error {
	return New(KindNotFound, entity, fmt.Errorf("%s %q 不存在", entity, id))
}

// InvalidTransition 状态机边不允许：from → to
func InvalidTransition(from, to string) error {
	return New(KindInvalidTransition, "transition", fmt.Errorf("不允许从 %s 变更为 %s", from, to))
}

// KindOf 返回错误链上第一个分类；未分类返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable 外部调用失败（网络 / 生成 / 投递）可在下个周期重试
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindFetch, KindGeneration, KindDelivery:
		return true
	}
	return false
}
