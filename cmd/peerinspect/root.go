package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/config"
	"github.com/houzhh15/sdp-peercert/logging"
	"github.com/houzhh15/sdp-peercert/transport"
)

// app holds state shared by all subcommands
type app struct {
	configPath string
	logLevel   string
	serverName string
	timeout    time.Duration

	cfg       *config.Config
	logger    logging.Logger
	inspector *certinfo.Inspector
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "peerinspect",
		Short: "Inspect the X.509 certificate presented by a TLS peer",
		Long: `peerinspect connects to a TLS endpoint and reports the identity
the peer authenticated with: subject, issuer, alternative names, validity
and serial, plus a SHA-1 or SHA-256 fingerprint of the DER encoding.

Examples:
  # Show the certificate of a server
  peerinspect info example.com:443

  # Print a truncated SHA-1 fingerprint
  peerinspect fingerprint example.com:443 --algorithm sha1 --length 8

  # Pin a peer and run an identity-aware server
  peerinspect pin add peer.internal:8443 --client-id peer-01
  peerinspect serve --config peercert.yaml`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.serverName, "server-name", "", "TLS server name override")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "Connection timeout")

	root.AddCommand(
		newInfoCmd(a),
		newFingerprintCmd(a),
		newPinCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger and inspector.
// Every log line carries the invoked command path.
func (a *app) setup(cmd *cobra.Command) error {
	if a.configPath != "" {
		cfg, err := config.NewLoader().Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		// stdout carries command output
		a.cfg = config.Default()
		a.cfg.Logging.Level = "warn"
		a.cfg.Logging.Format = "text"
		a.cfg.Logging.Output = "stderr"
	}

	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}
	if a.serverName != "" {
		a.cfg.TLS.ServerName = a.serverName
	}

	logger, err := logging.NewLogger(a.cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger.With("command", cmd.CommandPath())

	a.inspector = certinfo.NewInspector(a.cfg.Inspector.Options(a.logger))
	return nil
}

// dial connects to addr using the client side of the tls section
func (a *app) dial(ctx context.Context, addr string) (certinfo.Session, func(), error) {
	tlsConfig, err := transport.LoadClientTLSConfig(transport.FromConfig(a.cfg.TLS))
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	conn, err := transport.DialTLS(ctx, addr, tlsConfig)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("Connected", "addr", addr, "tls_version", conn.ConnectionState().Version)
	return conn, func() { conn.Close() }, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
