package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/houzhh15/sdp-peercert/logging"
	"github.com/houzhh15/sdp-peercert/transport"
)

func discardLogger() logging.Logger {
	return logging.NewWriterLogger(io.Discard, logging.LevelError, logging.FormatText)
}

func TestShutdown_ForcesAfterTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	httpServer := transport.NewHTTPServer(nil, &transport.ServerOptions{ShutdownTimeout: 50 * time.Millisecond})
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go httpServer.Serve(httpLis, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	grpcServer := transport.NewGRPCServer(nil, nil)
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go grpcServer.Serve(grpcLis)

	// 保持一个不会结束的 Watch 流
	conn, err := grpc.Dial(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, err := healthpb.NewHealthClient(conn).Watch(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	reqErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + httpLis.Addr().String() + "/")
		if err == nil {
			resp.Body.Close()
		}
		reqErr <- err
	}()
	<-entered

	start := time.Now()
	shutdown(discardLogger(), httpServer, grpcServer, 100*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)

	_, err = stream.Recv()
	assert.Error(t, err)

	select {
	case err := <-reqErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("In-flight request not terminated")
	}
}

func TestShutdown_BeforeServe(t *testing.T) {
	httpServer := transport.NewHTTPServer(nil, nil)
	grpcServer := transport.NewGRPCServer(nil, nil)

	shutdown(discardLogger(), httpServer, grpcServer, time.Second)

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Serve(httpLis, http.NotFoundHandler()) }()
	go func() { errCh <- grpcServer.Serve(grpcLis) }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after shutdown")
		}
	}

	_, err = httpLis.Accept()
	assert.Error(t, err)
	_, err = grpcLis.Accept()
	assert.Error(t, err)
}
