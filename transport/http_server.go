package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// ServerOptions 服务器超时配置，零值使用默认值
type ServerOptions struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration // Stop 等待现有连接的时间
}

// httpServer HTTPS 服务器实现
// 支持 mTLS、中间件链、优雅关闭
type httpServer struct {
	server      *http.Server
	tlsConfig   *tls.Config
	opts        ServerOptions
	listener    net.Listener
	middlewares []func(http.Handler) http.Handler
	stopped     bool
	mu          sync.RWMutex
}

// NewHTTPServer 创建 HTTP 服务器
// tlsConfig 为 nil 则使用普通 HTTP，此时对端身份检查总是失败
func NewHTTPServer(tlsConfig *tls.Config, opts *ServerOptions) HTTPServer {
	s := &httpServer{
		tlsConfig:   tlsConfig,
		middlewares: make([]func(http.Handler) http.Handler, 0),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.ReadTimeout == 0 {
		s.opts.ReadTimeout = 15 * time.Second
	}
	if s.opts.WriteTimeout == 0 {
		s.opts.WriteTimeout = 15 * time.Second
	}
	if s.opts.IdleTimeout == 0 {
		s.opts.IdleTimeout = 60 * time.Second
	}
	if s.opts.ShutdownTimeout == 0 {
		s.opts.ShutdownTimeout = 5 * time.Second
	}
	return s
}

// RegisterMiddleware 注册中间件（先注册的在外层）
func (s *httpServer) RegisterMiddleware(mw func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// Start 启动 HTTP 服务器
func (s *httpServer) Start(addr string, handler http.Handler) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis, handler)
}

// Serve 在已有监听器上启动服务器
// 已调用 Stop 时关闭 lis 并立即返回
func (s *httpServer) Serve(lis net.Listener, handler http.Handler) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		lis.Close()
		return nil
	}

	// 应用中间件链（反向顺序）
	finalHandler := handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		finalHandler = s.middlewares[i](finalHandler)
	}

	s.server = &http.Server{
		Handler:      finalHandler,
		TLSConfig:    s.tlsConfig,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	s.listener = lis
	server := s.server

	s.mu.Unlock()

	var err error
	if s.tlsConfig != nil {
		err = server.ServeTLS(lis, "", "") // 证书已在 tlsConfig 中配置
	} else {
		err = server.Serve(lis)
	}

	// ErrServerClosed 不是错误（正常关闭）
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr 返回监听地址
func (s *httpServer) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop 优雅关闭服务器（等待现有连接完成）
// 超过 ShutdownTimeout 返回 context.DeadlineExceeded，连接保持打开
func (s *httpServer) Stop() error {
	server := s.markStopped()
	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}

// StopImmediately 立即关闭服务器（强制断开所有连接）
func (s *httpServer) StopImmediately() error {
	server := s.markStopped()
	if server == nil {
		return nil
	}

	return server.Close()
}

func (s *httpServer) markStopped() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	return s.server
}
