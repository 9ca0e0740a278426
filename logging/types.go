package logging

import "time"

// IdentityResult 身份检查结果
type IdentityResult string

const (
	ResultAccepted IdentityResult = "accepted"
	ResultRejected IdentityResult = "rejected"
)

// IdentityEvent 对端身份事件
// 记录一次对端证书检查（HTTP 请求、gRPC 调用或命令行连接）的结果
type IdentityEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	RemoteAddr  string                 `json:"remote_addr,omitempty"`
	Transport   string                 `json:"transport"` // "http", "grpc", "cli"
	SubjectCN   string                 `json:"subject_cn,omitempty"`
	IssuerCN    string                 `json:"issuer_cn,omitempty"`
	Serial      string                 `json:"serial,omitempty"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	AltNames    []string               `json:"alt_names,omitempty"`
	NotAfter    string                 `json:"not_after,omitempty"`
	Result      IdentityResult         `json:"result"`
	ErrorKind   string                 `json:"error_kind,omitempty"` // certinfo 错误类别
	Reason      string                 `json:"reason,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// AuditFilter 审计日志查询过滤器
type AuditFilter struct {
	Transport   string         `json:"transport,omitempty"`
	SubjectCN   string         `json:"subject_cn,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Result      IdentityResult `json:"result,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	StartTime   time.Time      `json:"start_time,omitempty"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Limit       int            `json:"limit,omitempty"`
	Offset      int            `json:"offset,omitempty"`
}

// AuditLog 审计日志记录
type AuditLog struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Event     *IdentityEvent `json:"event"`
}
