package transport

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestNewGRPCServer(t *testing.T) {
	server := NewGRPCServer(nil, nil)
	if server == nil {
		t.Fatal("NewGRPCServer returned nil")
	}
}

func TestGRPCServer_RegisterService(t *testing.T) {
	server := NewGRPCServer(nil, nil).(*grpcServer)

	// 注册一个空服务（仅测试接口）
	server.RegisterService(nil, nil)

	if len(server.services) != 1 {
		t.Errorf("Expected 1 service, got %d", len(server.services))
	}
}

func TestGRPCServer_Stop(t *testing.T) {
	server := NewGRPCServer(nil, nil)

	// 停止未启动的服务器（应该不报错）
	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestGRPCServer_StopBeforeServe(t *testing.T) {
	server := NewGRPCServer(nil, nil)
	require.NoError(t, server.Stop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveChan := make(chan error, 1)
	go func() { serveChan <- server.Serve(lis) }()

	select {
	case err := <-serveChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	// 监听器已关闭
	_, err = lis.Accept()
	assert.Error(t, err)
}

// startGRPCHealthServer 启动带身份拦截器的 TLS gRPC 健康检查服务
func startGRPCHealthServer(t *testing.T, serverCert *testCert) string {
	t.Helper()

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{serverCert.tlsCert},
		ClientAuth:   tls.RequestClientCert,
	}
	server := NewGRPCServer(tlsConfig, NewIdentityGuard(nil))
	healthpb.RegisterHealthServer(server.(*grpcServer), health.NewServer())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(lis)
	}()
	t.Cleanup(func() {
		server.StopImmediately()
		<-done
	})
	return lis.Addr().String()
}

func dialHealth(t *testing.T, addr string, clientCert *testCert) healthpb.HealthClient {
	t.Helper()

	clientTLS := &tls.Config{InsecureSkipVerify: true}
	if clientCert != nil {
		clientTLS.Certificates = []tls.Certificate{clientCert.tlsCert}
	}
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(credentials.NewTLS(clientTLS)))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestGRPCServer_PeerIdentity(t *testing.T) {
	serverCert := generateTestCert(t, "server.test")
	clientCert := generateTestCert(t, "client.test")
	addr := startGRPCHealthServer(t, serverCert)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := dialHealth(t, addr, clientCert).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	_, err = dialHealth(t, addr, nil).Check(ctx, &healthpb.HealthCheckRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
