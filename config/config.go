package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/logging"
)

// Config represents the complete peer certificate inspection configuration
type Config struct {
	TLS       TLSConfig       `yaml:"tls" json:"tls"`
	Inspector InspectorConfig `yaml:"inspector" json:"inspector"`
	Pinning   PinningConfig   `yaml:"pinning" json:"pinning"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
}

// TLSConfig defines TLS certificate configuration
type TLSConfig struct {
	CertFile   string `yaml:"cert_file" json:"cert_file"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
	CAFile     string `yaml:"ca_file" json:"ca_file"`
	MinVersion string `yaml:"min_version" json:"min_version"` // TLS1.2, TLS1.3
	ServerName string `yaml:"server_name" json:"server_name"` // client side SNI override
}

// InspectorConfig defines certificate introspection limits
type InspectorConfig struct {
	MaxAltNames          int    `yaml:"max_alt_names" json:"max_alt_names"`
	FingerprintAlgorithm string `yaml:"fingerprint_algorithm" json:"fingerprint_algorithm"` // sha1, sha256
}

// PinningConfig defines the fingerprint pin store
type PinningConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Database  string `yaml:"database" json:"database"`   // sqlite path
	Algorithm string `yaml:"algorithm" json:"algorithm"` // sha1, sha256
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`           // debug, info, warn, error
	Format    string `yaml:"format" json:"format"`         // json, text
	Output    string `yaml:"output" json:"output"`         // stdout, stderr, file path
	AuditFile string `yaml:"audit_file" json:"audit_file"` // identity audit log path
}

// TransportConfig defines listener configuration for the identity-aware servers
type TransportConfig struct {
	HTTPAddr     string        `yaml:"http_addr" json:"http_addr"`
	GRPCAddr     string        `yaml:"grpc_addr" json:"grpc_addr"`
	EnableGRPC   bool          `yaml:"enable_grpc" json:"enable_grpc"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// Loader provides configuration loading functionality
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	NewLoader().setDefaults(&config)
	return &config
}

// Load reads and parses configuration from file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

// Validate checks configuration validity
func (l *Loader) Validate(config *Config) error {
	// Validate TLS files exist
	for name, path := range map[string]string{
		"cert_file": config.TLS.CertFile,
		"key_file":  config.TLS.KeyFile,
		"ca_file":   config.TLS.CAFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s not found: %s", name, path)
		}
	}
	if (config.TLS.CertFile == "") != (config.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file must be set together")
	}

	switch config.TLS.MinVersion {
	case "TLS1.2", "TLS1.3", "":
		// valid
	default:
		return fmt.Errorf("invalid tls.min_version: %s", config.TLS.MinVersion)
	}

	if config.Inspector.MaxAltNames < 0 {
		return fmt.Errorf("inspector.max_alt_names must not be negative")
	}
	if err := validateAlgorithm("inspector.fingerprint_algorithm", config.Inspector.FingerprintAlgorithm); err != nil {
		return err
	}
	if err := validateAlgorithm("pinning.algorithm", config.Pinning.Algorithm); err != nil {
		return err
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("invalid logging format: %s", config.Logging.Format)
	}

	return nil
}

func validateAlgorithm(field, algorithm string) error {
	if algorithm == "" {
		return nil
	}
	if certinfo.DigestSize(algorithm) == 0 {
		return fmt.Errorf("invalid %s: %s (must be sha1/sha256)", field, algorithm)
	}
	return nil
}

// setDefaults sets default values for optional fields
func (l *Loader) setDefaults(config *Config) {
	// TLS defaults
	if config.TLS.MinVersion == "" {
		config.TLS.MinVersion = "TLS1.2"
	}

	// Inspector defaults
	if config.Inspector.MaxAltNames == 0 {
		config.Inspector.MaxAltNames = certinfo.DefaultMaxAltNames
	}
	if config.Inspector.FingerprintAlgorithm == "" {
		config.Inspector.FingerprintAlgorithm = certinfo.AlgorithmSHA256
	}
	config.Inspector.FingerprintAlgorithm = strings.ToLower(config.Inspector.FingerprintAlgorithm)

	// Pinning defaults
	if config.Pinning.Database == "" {
		config.Pinning.Database = "pins.db"
	}
	if config.Pinning.Algorithm == "" {
		config.Pinning.Algorithm = config.Inspector.FingerprintAlgorithm
	}
	config.Pinning.Algorithm = strings.ToLower(config.Pinning.Algorithm)

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	// Transport defaults
	if config.Transport.HTTPAddr == "" {
		config.Transport.HTTPAddr = ":8443"
	}
	if config.Transport.GRPCAddr == "" {
		config.Transport.GRPCAddr = ":8444"
	}
	if config.Transport.ReadTimeout == 0 {
		config.Transport.ReadTimeout = 15 * time.Second
	}
	if config.Transport.WriteTimeout == 0 {
		config.Transport.WriteTimeout = 15 * time.Second
	}
	if config.Transport.IdleTimeout == 0 {
		config.Transport.IdleTimeout = 60 * time.Second
	}
}

// Options converts the inspector section into certinfo options
func (c InspectorConfig) Options(logger logging.Logger) *certinfo.Options {
	return &certinfo.Options{
		MaxAltNames: c.MaxAltNames,
		Logger:      logger,
	}
}

// LoggerConfig converts the logging section into a logger configuration
func (c LoggingConfig) LoggerConfig() *logging.Config {
	return &logging.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
	}
}
