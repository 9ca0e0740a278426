package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/houzhh15/sdp-peercert/logging"
	"github.com/houzhh15/sdp-peercert/pinning"
	"github.com/houzhh15/sdp-peercert/transport"
)

// shutdownTimeout 优雅关闭的等待时间，超时后强制断开
const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run identity-aware HTTPS and gRPC endpoints",
		Long: `Run an HTTPS server that requires a client certificate and answers
GET /v1/peer with the caller's certificate as JSON. /metrics exposes
Prometheus metrics. With transport.enable_grpc a gRPC health service is
served behind the same identity check. With pinning.enabled only pinned
fingerprints are accepted.

Requires tls.cert_file and tls.key_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	if a.cfg.TLS.CertFile == "" || a.cfg.TLS.KeyFile == "" {
		return fmt.Errorf("serve requires tls.cert_file and tls.key_file")
	}
	tlsConfig, err := transport.LoadTLSConfig(transport.FromConfig(a.cfg.TLS))
	if err != nil {
		return err
	}

	auditor, closeAudit, err := a.openAuditor()
	if err != nil {
		return err
	}
	defer closeAudit()

	guardOpts := &transport.GuardOptions{
		Inspector: a.inspector,
		Algorithm: a.cfg.Inspector.FingerprintAlgorithm,
		Auditor:   auditor,
		Logger:    a.logger,
	}
	if a.cfg.Pinning.Enabled {
		store, err := pinning.Open(a.cfg.Pinning.Database, &pinning.Options{
			Inspector: a.inspector,
			Algorithm: a.cfg.Pinning.Algorithm,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		guardOpts.Verifier = store
	}
	guard := transport.NewIdentityGuard(guardOpts)

	mux := http.NewServeMux()
	mux.Handle("/v1/peer", transport.PeerIdentity(guard)(transport.PeerIdentityHandler()))
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := transport.NewHTTPServer(tlsConfig, &transport.ServerOptions{
		ReadTimeout:     a.cfg.Transport.ReadTimeout,
		WriteTimeout:    a.cfg.Transport.WriteTimeout,
		IdleTimeout:     a.cfg.Transport.IdleTimeout,
		ShutdownTimeout: shutdownTimeout,
	})

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTPS server starting", "addr", a.cfg.Transport.HTTPAddr)
		errCh <- httpServer.Start(a.cfg.Transport.HTTPAddr, mux)
	}()

	var grpcServer transport.GRPCServer
	if a.cfg.Transport.EnableGRPC {
		grpcServer = transport.NewGRPCServer(tlsConfig, guard)
		healthpb.RegisterHealthServer(grpcServer, health.NewServer())
		go func() {
			a.logger.Info("gRPC server starting", "addr", a.cfg.Transport.GRPCAddr)
			errCh <- grpcServer.Start(a.cfg.Transport.GRPCAddr)
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err = <-errCh:
		if err != nil {
			a.logger.Error("Server failed", "error", err)
		}
	}

	shutdown(a.logger, httpServer, grpcServer, shutdownTimeout)
	return err
}

// shutdown 优雅关闭两个服务器，超过 timeout 仍未完成则强制断开
// grpcServer 可为 nil
func shutdown(logger logging.Logger, httpServer transport.HTTPServer, grpcServer transport.GRPCServer, timeout time.Duration) {
	if err := httpServer.Stop(); err != nil {
		logger.Warn("HTTPS graceful shutdown failed, closing connections", "error", err)
		if err := httpServer.StopImmediately(); err != nil {
			logger.Error("Failed to close HTTPS server", "error", err)
		}
	}
	if grpcServer == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		grpcServer.Stop()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("gRPC graceful shutdown timed out, stopping immediately", "timeout", timeout)
		grpcServer.StopImmediately()
		<-done
	}
}
