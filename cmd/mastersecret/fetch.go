// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mastersecret/pkg/handoff"
	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
)

// defaultFetchTimeout is the default timeout for a complete fetch.
const defaultFetchTimeout = 15 * time.Second

// fetchCmd fetches a master secret from a handoff server.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a master secret from a handoff server",
	Long: `Connect to a handoff server over Noise_IK and retrieve its master
secret. The server's static public key is required; the client identifies
itself with the static key in --key-file, whose public half the server must
authorize.

The secret is written to --output (mode 0600) or stdout in the --format
encoding. With --describe only the key sizes and fingerprint are fetched.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("server-addr", "", "handoff server address (host:port) (required)")
	fetchCmd.Flags().String("server-key", "", "hex-encoded server Curve25519 static public key (required)")
	fetchCmd.Flags().String("key-file", defaultClientKeyFile, "path to the client's hex-encoded static key")
	fetchCmd.Flags().Duration("timeout", defaultFetchTimeout, "timeout for connect and fetch")
	fetchCmd.Flags().Bool("describe", false, "fetch key sizes and fingerprint instead of the secret")
}

func runFetch(cmd *cobra.Command, args []string) error {
	serverAddr, _ := cmd.Flags().GetString("server-addr")
	serverKeyHex, _ := cmd.Flags().GetString("server-key")
	keyFile, _ := cmd.Flags().GetString("key-file")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	describe, _ := cmd.Flags().GetBool("describe")

	if serverAddr == "" {
		return fmt.Errorf("%w: --server-addr is required", ErrInvalidInput)
	}
	if serverKeyHex == "" {
		return fmt.Errorf("%w: --server-key is required", ErrInvalidInput)
	}
	serverKey, err := noiseproto.ParsePublicKey(serverKeyHex)
	if err != nil {
		return fmt.Errorf("%w: server key: %w", ErrInvalidInput, err)
	}
	if keyFile == "" {
		return fmt.Errorf("%w: --key-file is required", ErrInvalidInput)
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	clientKey, err := loadStaticKey(keyFile)
	if err != nil {
		return err
	}
	defer clientKey.Destroy()

	sigCtx, sigStop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer sigStop()

	ctx, cancel := context.WithTimeout(sigCtx, timeout)
	defer cancel()

	return fetch(ctx, serverAddr, serverKey, clientKey, describe)
}

func fetch(ctx context.Context, serverAddr string, serverKey []byte, clientKey *noiseproto.StaticKey, describe bool) error {
	slog.Debug("connecting to handoff server", "addr", serverAddr)

	client, err := handoff.NewClient(&handoff.ClientConfig{
		ServerAddr:      serverAddr,
		ServerStaticKey: serverKey,
		StaticKey:       clientKey,
		Logger:          slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if describe {
		d, err := client.Describe(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return writeOutput(append(out, '\n'))
	}

	ms, err := client.FetchMasterSecret(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer ms.Destroy()

	fp, err := ms.Fingerprint()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	slog.Info("received master secret", "fingerprint", fp)

	return writeSecret(ms)
}
