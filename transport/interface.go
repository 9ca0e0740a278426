package transport

import (
	"net"
	"net/http"

	"google.golang.org/grpc"
)

// HTTPServer 身份感知的 HTTPS 服务器
type HTTPServer interface {
	// Start 监听 addr 并启动服务器（阻塞）
	Start(addr string, handler http.Handler) error
	// Serve 在已有监听器上启动服务器（阻塞）
	Serve(lis net.Listener, handler http.Handler) error
	// Stop 优雅停止服务器，超时返回错误
	Stop() error
	// StopImmediately 强制断开所有连接
	StopImmediately() error
	// RegisterMiddleware 注册中间件
	RegisterMiddleware(mw func(http.Handler) http.Handler)
	// Addr 返回实际监听地址，未启动时为 nil
	Addr() net.Addr
}

// GRPCServer 身份感知的 gRPC 服务器
type GRPCServer interface {
	// Start 启动 gRPC 服务器
	Start(addr string) error
	// Serve 在已有监听器上启动服务器（阻塞）
	Serve(lis net.Listener) error
	// Stop 优雅停止服务器
	Stop() error
	// StopImmediately 强制断开所有连接
	StopImmediately() error
	// RegisterService 注册 gRPC 服务
	RegisterService(desc *grpc.ServiceDesc, impl interface{})
}
