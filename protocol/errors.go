package protocol

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/houzhh15/sdp-peercert/certinfo"
)

// 错误码常量
const (
	// 成功
	ErrCodeSuccess = 0

	// 请求错误 (400xx)
	ErrCodeInvalidRequest       = 40000 // 无效请求
	ErrCodeUnsupportedAlgorithm = 40001 // 不支持的指纹算法

	// 认证错误 (401xx)
	ErrCodeUnauthorized      = 40100 // 未授权
	ErrCodeInvalidCert       = 40101 // 证书无效
	ErrCodeNotConnected      = 40102 // 会话未建立
	ErrCodeNoPeerCertificate = 40103 // 对端未提供证书

	// 授权错误 (403xx)
	ErrCodeCertNotPinned = 40301 // 指纹未登记
	ErrCodeCertRevoked   = 40302 // 指纹已吊销

	// 资源错误 (404xx)
	ErrCodeNotFound = 40400 // 资源不存在

	// 容量错误 (413xx)
	ErrCodeCertTooLarge = 41301 // 证书内容超出上限

	// 服务错误 (500xx)
	ErrCodeInternal = 50000 // 内部错误
)

// Error 协议错误
type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewError 创建新错误
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError 包装已有错误
func WrapError(code int, err error) *Error {
	return &Error{
		Code:    code,
		Message: err.Error(),
		Details: make(map[string]interface{}),
	}
}

// WithDetails 添加详细信息
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatus 错误码对应的 HTTP 状态码（取错误码前三位）
func (e *Error) HTTPStatus() int {
	status := e.Code / 100
	if http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// kindCodes 证书错误类别到协议错误码的映射
var kindCodes = map[certinfo.Kind]int{
	certinfo.KindNotConnected:         ErrCodeNotConnected,
	certinfo.KindNoPeerCertificate:    ErrCodeNoPeerCertificate,
	certinfo.KindInvalidVersion:       ErrCodeInvalidCert,
	certinfo.KindMissingSubject:       ErrCodeInvalidCert,
	certinfo.KindMissingIssuer:        ErrCodeInvalidCert,
	certinfo.KindCorruptValue:         ErrCodeInvalidCert,
	certinfo.KindInvalidAddressLength: ErrCodeInvalidCert,
	certinfo.KindParseError:           ErrCodeInvalidCert,
	certinfo.KindUnsupportedAlgorithm: ErrCodeUnsupportedAlgorithm,
	certinfo.KindOutOfMemory:          ErrCodeCertTooLarge,
}

// FromPeerCertError 将证书检查错误转换为协议错误
// 已是协议错误时原样返回；未知错误映射为内部错误
func FromPeerCertError(err error) *Error {
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	var cerr *certinfo.Error
	if !errors.As(err, &cerr) {
		return WrapError(ErrCodeInternal, err)
	}

	code, ok := kindCodes[cerr.Kind]
	if !ok {
		code = ErrCodeInternal
	}
	out := WrapError(code, cerr).WithDetails("kind", string(cerr.Kind))
	for k, v := range cerr.Details {
		out.Details[k] = v
	}
	return out
}
