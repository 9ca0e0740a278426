package protocol

import (
	"time"

	"github.com/houzhh15/sdp-peercert/certinfo"
)

// 消息类型常量
const (
	MsgTypePeerIdentity = "peer_identity"
	MsgTypePinRequest   = "pin_request"
	MsgTypePinResponse  = "pin_response"
	MsgTypeError        = "error"
)

// PeerIdentityResponse 对端身份查询结果
type PeerIdentityResponse struct {
	Type        string                    `json:"type"`
	RemoteAddr  string                    `json:"remote_addr,omitempty"`
	Certificate *certinfo.CertificateInfo `json:"certificate"`
	Fingerprint string                    `json:"fingerprint,omitempty"`
	Pinned      bool                      `json:"pinned"`
	ClientID    string                    `json:"client_id,omitempty"`
}

// PinRequest 登记指纹请求
type PinRequest struct {
	Type        string `json:"type"`
	ClientID    string `json:"client_id"`
	Fingerprint string `json:"fingerprint"`
}

// PinResponse 登记指纹结果
type PinResponse struct {
	Type        string    `json:"type"`
	ClientID    string    `json:"client_id"`
	Fingerprint string    `json:"fingerprint"`
	SubjectCN   string    `json:"subject_cn,omitempty"`
	NotAfter    string    `json:"not_after,omitempty"`
	PinnedAt    time.Time `json:"pinned_at"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Type  string `json:"type"`
	Error *Error `json:"error"`
}

// NewPeerIdentityResponse 创建身份查询结果
func NewPeerIdentityResponse(info *certinfo.CertificateInfo, fingerprint string) *PeerIdentityResponse {
	return &PeerIdentityResponse{
		Type:        MsgTypePeerIdentity,
		Certificate: info,
		Fingerprint: fingerprint,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *Error) *ErrorResponse {
	return &ErrorResponse{Type: MsgTypeError, Error: err}
}
