package main

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/logging"
	"github.com/houzhh15/sdp-peercert/protocol"
)

// infoOutput is the JSON document printed by the info command
type infoOutput struct {
	*protocol.PeerIdentityResponse
	MatchesHost bool `json:"matches_host"`
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <host:port>",
		Short: "Display the peer certificate of a TLS endpoint",
		Long: `Connect to a TLS endpoint and print the peer certificate as JSON.

The fingerprint uses inspector.fingerprint_algorithm from the configuration.
matches_host reports whether the certificate names the dialed host.

Examples:
  peerinspect info example.com:443
  peerinspect info 10.0.0.5:8443 --server-name internal.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInfo(cmd, args[0])
		},
	}
}

func (a *app) runInfo(cmd *cobra.Command, addr string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, closeConn, err := a.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer closeConn()

	auditor, closeAudit, err := a.openAuditor()
	if err != nil {
		return err
	}
	defer closeAudit()

	info, err := a.inspector.GetPeerCertificateInfo(sess)
	if err != nil {
		a.auditCLI(ctx, auditor, addr, nil, "", err)
		return protocol.FromPeerCertError(err)
	}

	algorithm := a.cfg.Inspector.FingerprintAlgorithm
	fingerprint, err := a.inspector.PeerFingerprintString(sess, algorithm)
	if err != nil {
		a.auditCLI(ctx, auditor, addr, info, "", err)
		return protocol.FromPeerCertError(err)
	}
	a.auditCLI(ctx, auditor, addr, info, fingerprint, nil)

	host := a.cfg.TLS.ServerName
	if host == "" {
		host, _, _ = net.SplitHostPort(addr)
	}

	resp := protocol.NewPeerIdentityResponse(info, fingerprint)
	resp.RemoteAddr = addr
	return writeJSON(cmd.OutOrStdout(), &infoOutput{
		PeerIdentityResponse: resp,
		MatchesHost:          info.MatchesHost(host),
	})
}

// openAuditor opens logging.audit_file when configured
func (a *app) openAuditor() (logging.IdentityAuditor, func(), error) {
	if a.cfg.Logging.AuditFile == "" {
		return nil, func() {}, nil
	}
	auditor, err := logging.NewFileAuditLogger(a.cfg.Logging.AuditFile, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return auditor, func() { auditor.Close() }, nil
}

func (a *app) auditCLI(ctx context.Context, auditor logging.IdentityAuditor, addr string, info *certinfo.CertificateInfo, fingerprint string, cause error) {
	if auditor == nil {
		return
	}

	event := &logging.IdentityEvent{
		RemoteAddr:  addr,
		Transport:   "cli",
		Fingerprint: fingerprint,
		Result:      logging.ResultAccepted,
	}
	if info != nil {
		event.SubjectCN = info.Subject.CommonName
		event.IssuerCN = info.Issuer.CommonName
		event.Serial = info.Serial
		event.NotAfter = info.NotAfter
		for _, an := range info.AltNames {
			event.AltNames = append(event.AltNames, an.String())
		}
	}
	if cause != nil {
		event.Result = logging.ResultRejected
		event.ErrorKind = string(certinfo.KindOf(cause))
		event.Reason = cause.Error()
	}

	if err := auditor.LogIdentity(ctx, event); err != nil {
		a.logger.Error("Failed to write identity audit", "error", err)
	}
}
