package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/houzhh15/sdp-peercert/pinning"
	"github.com/houzhh15/sdp-peercert/protocol"
)

func newPinCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage pinned peer fingerprints",
		Long: `Manage the fingerprint pin store used by "serve" when pinning is enabled.

Examples:
  peerinspect pin add peer.internal:8443 --client-id peer-01
  peerinspect pin list --status active
  peerinspect pin revoke sha256:3f1c... --reason "key compromise"`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Pin database path (defaults to pinning.database)")

	openStore := func() (*pinning.Store, error) {
		path := dbPath
		if path == "" {
			path = a.cfg.Pinning.Database
		}
		return pinning.Open(path, &pinning.Options{
			Inspector: a.inspector,
			Algorithm: a.cfg.Pinning.Algorithm,
			Logger:    a.logger,
		})
	}

	cmd.AddCommand(
		newPinAddCmd(a, openStore),
		newPinListCmd(openStore),
		newPinRevokeCmd(openStore),
		newPinRemoveCmd(openStore),
		newPinCleanCmd(openStore),
	)
	return cmd
}

type storeOpener func() (*pinning.Store, error)

func newPinAddCmd(a *app, openStore storeOpener) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "add <host:port>",
		Short: "Connect to a peer and pin its certificate fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sess, closeConn, err := a.dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeConn()

			if clientID == "" {
				clientID = args[0]
			}
			pin, err := store.PinSession(clientID, sess)
			if err != nil {
				return protocol.FromPeerCertError(err)
			}
			return writeJSON(cmd.OutOrStdout(), pin)
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client ID recorded with the pin (defaults to the address)")
	return cmd
}

func newPinListCmd(openStore storeOpener) *cobra.Command {
	var (
		page     int
		pageSize int
		status   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pinned fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch pinning.Status(status) {
			case "", pinning.StatusActive, pinning.StatusRevoked, pinning.StatusExpired:
			default:
				return fmt.Errorf("invalid status: %s (must be active/revoked/expired)", status)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			pins, total, err := store.List(page, pageSize, pinning.Status(status))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"total": total,
				"page":  page,
				"pins":  pins,
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Page size")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, revoked, expired)")
	return cmd
}

func newPinRevokeCmd(openStore storeOpener) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <fingerprint>",
		Short: "Revoke a pinned fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Revoke(args[0], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "unspecified", "Revocation reason")
	return cmd
}

func newPinRemoveCmd(openStore storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <fingerprint>",
		Short: "Delete a pinned fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Unpin(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newPinCleanCmd(openStore storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Mark pins whose certificate has expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.CleanExpired()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d\n", n)
			return nil
		},
	}
}
