package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/protocol"
)

func newFingerprintCmd(a *app) *cobra.Command {
	var (
		algorithm string
		length    int
	)

	cmd := &cobra.Command{
		Use:   "fingerprint <host:port>",
		Short: "Print the fingerprint of the peer certificate",
		Long: `Hash the DER encoding of the peer certificate and print it as
"<algorithm>:<hex>". With --length the digest is truncated to that many bytes.

Examples:
  peerinspect fingerprint example.com:443
  peerinspect fingerprint example.com:443 --algorithm sha1 --length 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if algorithm == "" {
				algorithm = a.cfg.Inspector.FingerprintAlgorithm
			}
			size := certinfo.DigestSize(algorithm)
			if size == 0 {
				return protocol.FromPeerCertError(certinfo.ErrUnsupportedAlgorithm).
					WithDetails("algorithm", algorithm)
			}
			if length < 0 {
				return fmt.Errorf("--length must not be negative")
			}
			if length == 0 || length > size {
				length = size
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sess, closeConn, err := a.dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeConn()

			out := make([]byte, length)
			n, err := a.inspector.GetPeerCertificateFingerprint(sess, algorithm, out)
			if err != nil {
				return protocol.FromPeerCertError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), certinfo.FormatFingerprint(algorithm, out[:n]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "Digest algorithm (sha1, sha256); defaults to the configured one")
	cmd.Flags().IntVarP(&length, "length", "n", 0, "Number of digest bytes to print (0 = full digest)")
	return cmd
}
