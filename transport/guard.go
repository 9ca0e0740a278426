package transport

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/logging"
	"github.com/houzhh15/sdp-peercert/pinning"
	"github.com/houzhh15/sdp-peercert/protocol"
)

// PeerInfo 通过身份检查的对端信息
type PeerInfo struct {
	RemoteAddr  string
	Certificate *certinfo.CertificateInfo
	Fingerprint string
	Pin         *pinning.Pin // 未启用指纹登记时为 nil
}

// GuardOptions 身份检查配置
type GuardOptions struct {
	Inspector *certinfo.Inspector     // 默认 certinfo.NewInspector(nil)
	Algorithm string                  // 指纹算法，默认 sha256
	Verifier  pinning.Verifier        // 可选
	Auditor   logging.IdentityAuditor // 可选
	Logger    logging.Logger          // 可选
}

// IdentityGuard 在 HTTP 和 gRPC 之间共享的对端身份检查
type IdentityGuard struct {
	inspector *certinfo.Inspector
	algorithm string
	verifier  pinning.Verifier
	auditor   logging.IdentityAuditor
	logger    logging.Logger
}

// NewIdentityGuard 创建身份检查
func NewIdentityGuard(opts *GuardOptions) *IdentityGuard {
	if opts == nil {
		opts = &GuardOptions{}
	}
	inspector := opts.Inspector
	if inspector == nil {
		inspector = certinfo.NewInspector(&certinfo.Options{Logger: opts.Logger})
	}
	algorithm := strings.ToLower(opts.Algorithm)
	if algorithm == "" {
		algorithm = certinfo.AlgorithmSHA256
	}
	return &IdentityGuard{
		inspector: inspector,
		algorithm: algorithm,
		verifier:  opts.Verifier,
		auditor:   opts.Auditor,
		logger:    opts.Logger,
	}
}

// Check 提取会话对端证书信息、计算指纹并校验登记状态
// 失败时返回协议错误，成功与失败都会写入审计日志
func (g *IdentityGuard) Check(ctx context.Context, transport, remoteAddr string, s certinfo.Session) (*PeerInfo, *protocol.Error) {
	start := time.Now()
	peer, err := g.check(s)
	recordIdentityCheck(transport, err == nil, time.Since(start).Seconds())

	var perr *protocol.Error
	if err != nil {
		perr = toProtocolError(err)
	}
	if peer != nil {
		peer.RemoteAddr = remoteAddr
	}
	g.audit(ctx, transport, remoteAddr, peer, err, perr)

	if perr != nil {
		// 审计记录器自身会输出拒绝日志
		if g.logger != nil && g.auditor == nil {
			g.logger.Warn("Peer identity rejected",
				"transport", transport,
				"remote_addr", remoteAddr,
				"code", perr.Code,
				"error", err)
		}
		return nil, perr
	}
	return peer, nil
}

func (g *IdentityGuard) check(s certinfo.Session) (*PeerInfo, error) {
	info, err := g.inspector.GetPeerCertificateInfo(s)
	if err != nil {
		return nil, err
	}

	fingerprint, err := g.inspector.PeerFingerprintString(s, g.algorithm)
	if err != nil {
		return &PeerInfo{Certificate: info}, err
	}

	peer := &PeerInfo{Certificate: info, Fingerprint: fingerprint}
	if g.verifier == nil {
		return peer, nil
	}

	pin, err := g.verifier.Verify(s)
	peer.Pin = pin
	return peer, err
}

func (g *IdentityGuard) audit(ctx context.Context, transport, remoteAddr string, peer *PeerInfo, err error, perr *protocol.Error) {
	if g.auditor == nil {
		return
	}

	event := &logging.IdentityEvent{
		RemoteAddr: remoteAddr,
		Transport:  transport,
		Result:     logging.ResultAccepted,
	}
	if peer != nil && peer.Certificate != nil {
		info := peer.Certificate
		event.SubjectCN = info.Subject.CommonName
		event.IssuerCN = info.Issuer.CommonName
		event.Serial = info.Serial
		event.NotAfter = info.NotAfter
		event.Fingerprint = peer.Fingerprint
		for _, an := range info.AltNames {
			event.AltNames = append(event.AltNames, an.String())
		}
	}
	if perr != nil {
		event.Result = logging.ResultRejected
		event.ErrorKind = string(certinfo.KindOf(err))
		event.Reason = err.Error()
		event.Details = map[string]interface{}{"code": perr.Code}
	}

	if aerr := g.auditor.LogIdentity(ctx, event); aerr != nil && g.logger != nil {
		g.logger.Error("Failed to write identity audit", "error", aerr)
	}
}

// toProtocolError 将证书错误和登记错误统一为协议错误
func toProtocolError(err error) *protocol.Error {
	switch {
	case errors.Is(err, pinning.ErrNotPinned):
		return protocol.WrapError(protocol.ErrCodeCertNotPinned, err)
	case errors.Is(err, pinning.ErrRevoked):
		return protocol.WrapError(protocol.ErrCodeCertRevoked, err)
	case errors.Is(err, pinning.ErrExpired):
		return protocol.WrapError(protocol.ErrCodeInvalidCert, err).WithDetails("reason", "expired")
	default:
		return protocol.FromPeerCertError(err)
	}
}

type peerInfoKey struct{}

// WithPeerInfo 将对端信息写入 context
func WithPeerInfo(ctx context.Context, peer *PeerInfo) context.Context {
	return context.WithValue(ctx, peerInfoKey{}, peer)
}

// PeerInfoFromContext 从 context 读取对端信息
func PeerInfoFromContext(ctx context.Context) (*PeerInfo, bool) {
	peer, ok := ctx.Value(peerInfoKey{}).(*PeerInfo)
	return peer, ok && peer != nil
}
