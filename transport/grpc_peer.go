package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/protocol"
)

// GRPCPeerSession 从 gRPC 调用 context 中取出 TLS 会话
// 非 TLS 连接返回的会话视为未连接
func GRPCPeerSession(ctx context.Context) (certinfo.Session, string) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return certinfo.StateSession(nil), ""
	}

	remoteAddr := ""
	if p.Addr != nil {
		remoteAddr = p.Addr.String()
	}

	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return certinfo.StateSession(nil), remoteAddr
	}
	state := tlsInfo.State
	return certinfo.StateSession(&state), remoteAddr
}

// UnaryPeerIdentityInterceptor 一元调用的对端身份拦截器
func UnaryPeerIdentityInterceptor(guard *IdentityGuard) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := checkGRPCPeer(ctx, guard)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamPeerIdentityInterceptor 流式调用的对端身份拦截器
func StreamPeerIdentityInterceptor(guard *IdentityGuard) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := checkGRPCPeer(ss.Context(), guard)
		if err != nil {
			return err
		}
		return handler(srv, &peerServerStream{ServerStream: ss, ctx: ctx})
	}
}

func checkGRPCPeer(ctx context.Context, guard *IdentityGuard) (context.Context, error) {
	sess, remoteAddr := GRPCPeerSession(ctx)
	peerInfo, perr := guard.Check(ctx, "grpc", remoteAddr, sess)
	if perr != nil {
		return nil, status.Error(grpcCode(perr), perr.Message)
	}
	return WithPeerInfo(ctx, peerInfo), nil
}

// grpcCode 协议错误码到 gRPC 状态码
func grpcCode(perr *protocol.Error) codes.Code {
	switch perr.Code / 100 {
	case 401:
		return codes.Unauthenticated
	case 403:
		return codes.PermissionDenied
	case 400:
		return codes.InvalidArgument
	case 413:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// peerServerStream 携带对端信息 context 的 ServerStream
type peerServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *peerServerStream) Context() context.Context {
	return s.ctx
}
