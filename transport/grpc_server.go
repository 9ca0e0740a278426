package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// grpcServer gRPC 服务器实现
type grpcServer struct {
	server    *grpc.Server
	tlsConfig *tls.Config
	guard     *IdentityGuard
	listener  net.Listener
	stopped   bool
	mu        sync.RWMutex
	services  []serviceDesc
}

type serviceDesc struct {
	desc *grpc.ServiceDesc
	impl interface{}
}

// NewGRPCServer 创建 gRPC 服务器
// guard 非 nil 时为所有一元和流式调用安装对端身份拦截器
func NewGRPCServer(tlsConfig *tls.Config, guard *IdentityGuard) GRPCServer {
	return &grpcServer{
		tlsConfig: tlsConfig,
		guard:     guard,
		services:  make([]serviceDesc, 0),
	}
}

// RegisterService 注册 gRPC 服务（启动前调用）
func (s *grpcServer) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services = append(s.services, serviceDesc{
		desc: desc,
		impl: impl,
	})
}

// Start 启动 gRPC 服务器
func (s *grpcServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve 在已有监听器上启动服务器（阻塞）
// 已调用 Stop 时关闭 lis 并立即返回
func (s *grpcServer) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		lis.Close()
		return nil
	}
	s.listener = lis

	// 配置 gRPC 服务器选项
	opts := []grpc.ServerOption{}

	// 添加 TLS 凭证（如果配置）
	if s.tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsConfig)))
	}
	if s.guard != nil {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(UnaryPeerIdentityInterceptor(s.guard)),
			grpc.ChainStreamInterceptor(StreamPeerIdentityInterceptor(s.guard)),
		)
	}

	s.server = grpc.NewServer(opts...)

	// 注册所有服务
	for _, svc := range s.services {
		s.server.RegisterService(svc.desc, svc.impl)
	}
	server := s.server

	s.mu.Unlock()

	// 启动服务器（阻塞）
	if err := server.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}

	return nil
}

// Stop 停止 gRPC 服务器（优雅关闭，等待现有 RPC 完成）
func (s *grpcServer) Stop() error {
	if server := s.markStopped(); server != nil {
		server.GracefulStop()
	}
	return nil
}

// StopImmediately 立即停止 gRPC 服务器（强制断开）
// 可与进行中的 Stop 并发调用
func (s *grpcServer) StopImmediately() error {
	if server := s.markStopped(); server != nil {
		server.Stop()
	}
	return nil
}

func (s *grpcServer) markStopped() *grpc.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	return s.server
}
