package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/houzhh15/sdp-peercert/config"
)

// TLSConfig TLS 配置
type TLSConfig struct {
	CertFile   string `yaml:"cert_file" json:"cert_file"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
	CAFile     string `yaml:"ca_file" json:"ca_file"`
	MinVersion uint16 `yaml:"min_version" json:"min_version"` // tls.VersionTLS12
	ServerName string `yaml:"server_name" json:"server_name"`
}

// FromConfig 将配置文件中的 tls 段转换为 TLSConfig
func FromConfig(cfg config.TLSConfig) *TLSConfig {
	out := &TLSConfig{
		CertFile:   cfg.CertFile,
		KeyFile:    cfg.KeyFile,
		CAFile:     cfg.CAFile,
		ServerName: cfg.ServerName,
	}
	switch cfg.MinVersion {
	case "TLS1.3":
		out.MinVersion = tls.VersionTLS13
	default:
		out.MinVersion = tls.VersionTLS12
	}
	return out
}

// LoadTLSConfig 加载服务端 TLS 配置
// 配置 CA 时启用 mTLS 双向认证（RequireAndVerifyClientCert）；
// 未配置 CA 时仍要求客户端出示证书，但不做链验证
func LoadTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	// 1. 加载服务端证书和私钥
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load cert/key: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   cfg.MinVersion,
	}

	// 2. 加载 CA 证书（用于验证客户端证书）
	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert // 强制 mTLS
	}

	// 默认最低版本 TLS 1.2
	if tlsConfig.MinVersion == 0 {
		tlsConfig.MinVersion = tls.VersionTLS12
	}

	return tlsConfig, nil
}

// LoadClientTLSConfig 加载客户端 TLS 配置
// 未配置 CA 时跳过服务端证书验证，仅用于检查对端证书内容
func LoadClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName: cfg.ServerName,
		MinVersion: cfg.MinVersion,
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	} else {
		tlsConfig.InsecureSkipVerify = true
	}

	if tlsConfig.MinVersion == 0 {
		tlsConfig.MinVersion = tls.VersionTLS12
	}

	return tlsConfig, nil
}

// DialTLS 建立 TLS 连接并完成握手
func DialTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*tls.Conn, error) {
	cfg := tlsConfig.Clone()
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %s: %w", addr, err)
		}
		cfg.ServerName = host
	}

	dialer := &tls.Dialer{Config: cfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn.(*tls.Conn), nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA cert")
	}
	return pool, nil
}
