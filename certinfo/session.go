package certinfo

import (
	"crypto/tls"
	"crypto/x509"
)

// Session 已建立的 TLS 会话
// *tls.Conn 直接满足该接口
type Session interface {
	ConnectionState() tls.ConnectionState
}

// stateSession 包装已有的连接状态（如 http.Request.TLS）
type stateSession struct {
	state *tls.ConnectionState
}

// StateSession 将 tls.ConnectionState 包装为 Session
// state 为 nil 时视为未连接
func StateSession(state *tls.ConnectionState) Session {
	return stateSession{state: state}
}

// ConnectionState 实现 Session 接口
func (s stateSession) ConnectionState() tls.ConnectionState {
	if s.state == nil {
		return tls.ConnectionState{}
	}
	return *s.state
}

// peerCertificate 检查会话状态并返回对端叶子证书
func peerCertificate(s Session) (*x509.Certificate, error) {
	if s == nil {
		return nil, newError(KindNotConnected, "not connected")
	}
	if conn, ok := s.(*tls.Conn); ok && conn == nil {
		return nil, newError(KindNotConnected, "not connected")
	}

	state := s.ConnectionState()
	if !state.HandshakeComplete {
		return nil, newError(KindNotConnected, "not connected")
	}
	if len(state.PeerCertificates) == 0 || state.PeerCertificates[0] == nil {
		return nil, newError(KindNoPeerCertificate, "peer does not have cert")
	}
	return state.PeerCertificates[0], nil
}
