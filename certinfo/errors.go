package certinfo

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindNotConnected         Kind = "not_connected"          // 会话未完成握手
	KindNoPeerCertificate    Kind = "no_peer_certificate"    // 对端未提供证书
	KindInvalidVersion       Kind = "invalid_version"        // 证书版本非法
	KindMissingSubject       Kind = "missing_subject"        // 缺少主题
	KindMissingIssuer        Kind = "missing_issuer"         // 缺少签发者
	KindCorruptValue         Kind = "corrupt_value"          // 内嵌NUL、空值、编码不匹配
	KindInvalidAddressLength Kind = "invalid_address_length" // IP地址长度非4或16
	KindUnsupportedAlgorithm Kind = "unsupported_algorithm"  // 不支持的指纹算法
	KindParseError           Kind = "parse_error"            // 时间/整数格式错误
	KindOutOfMemory          Kind = "out_of_memory"          // 超出容量上限
)

// 哨兵错误，可用 errors.Is 按类别匹配
var (
	ErrNotConnected         = &Error{Kind: KindNotConnected}
	ErrNoPeerCertificate    = &Error{Kind: KindNoPeerCertificate}
	ErrInvalidVersion       = &Error{Kind: KindInvalidVersion}
	ErrMissingSubject       = &Error{Kind: KindMissingSubject}
	ErrMissingIssuer        = &Error{Kind: KindMissingIssuer}
	ErrCorruptValue         = &Error{Kind: KindCorruptValue}
	ErrInvalidAddressLength = &Error{Kind: KindInvalidAddressLength}
	ErrUnsupportedAlgorithm = &Error{Kind: KindUnsupportedAlgorithm}
	ErrParseError           = &Error{Kind: KindParseError}
	ErrOutOfMemory          = &Error{Kind: KindOutOfMemory}
)

// Error 证书解析错误
// Raw 保存导致失败的原始文本（如时间字符串），便于诊断
type Error struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Raw     string                 `json:"raw,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// newError 创建新错误
func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// parseError 创建携带原始文本的解析错误
func parseError(raw, format string, args ...interface{}) *Error {
	e := newError(KindParseError, format, args...)
	e.Raw = raw
	return e
}

// Error 实现 error 接口
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Raw != "" {
		return fmt.Sprintf("certinfo: %s: %q", msg, e.Raw)
	}
	return "certinfo: " + msg
}

// Is 按类别比较，使哨兵错误可与任意同类错误匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetails 添加详细信息
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf 返回错误链中第一个 *Error 的类别，不存在时返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
