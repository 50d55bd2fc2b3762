// Package errs 定义应用内统一的错误分类。
// handler 层根据 Kind 映射 HTTP 状态码，服务层根据 Kind 决定是否重试。
package errs

import (
	"errors"
	"fmt"
)

// Kind 标识错误的类别。
type Kind int

const (
	// KindUnknown 未分类错误
	KindUnknown Kind = iota
	// KindConfiguration 配置缺失或非法，启动期或首次使用时暴露
	KindConfiguration
	// KindUpstream 外部依赖（embedding/LLM/索引/存储）调用失败，可重试
	KindUpstream
	// KindValidation 调用方输入非法，不可重试
	KindValidation
	// KindAuth 认证或授权失败
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error 携带分类的错误，支持 errors.Is/As 与 %w 链。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个不包裹底层错误的分类错误。
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf 创建一个带格式化消息的分类错误。
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包裹底层错误并赋予分类。err 为 nil 时返回 nil。
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Configuration 配置错误的便捷构造。
func Configuration(msg string) error { return New(KindConfiguration, msg) }

// Upstream 上游错误的便捷构造。
func Upstream(msg string, err error) error { return Wrap(KindUpstream, msg, err) }

// Validation 输入校验错误的便捷构造。
func Validation(msg string) error { return New(KindValidation, msg) }

// Auth 认证错误的便捷构造。
func Auth(msg string) error { return New(KindAuth, msg) }

// KindOf 返回错误链上最近的分类；无分类时返回 KindUnknown。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable 只有上游错误允许有界重试。
func IsRetryable(err error) bool {
	return KindOf(err) == KindUpstream
}
