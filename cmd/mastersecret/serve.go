// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mastersecret/pkg/handoff"
	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
)

// Sentinel errors for the serve command.
var (
	// ErrSecretFileRequired is returned when the --secret-file flag is not provided.
	ErrSecretFileRequired = errors.New("serve: --secret-file is required")

	// ErrNoAuthorizedKeys is returned when no client key is authorized.
	ErrNoAuthorizedKeys = errors.New("serve: at least one authorized client key is required")

	// ErrServerStart is returned when the handoff server fails to start.
	ErrServerStart = errors.New("serve: server start failed")
)

// serveShutdownTimeout bounds the graceful stop after SIGTERM.
const serveShutdownTimeout = 10 * time.Second

// Flag variables for the serve command.
var (
	serveSecretFile         string
	serveKeyFile            string
	serveListenAddr         string
	serveMaxConnections     int
	serveAuthorizedKeys     []string
	serveAuthorizedKeysFile string
)

// serveCmd runs the Noise_IK handoff server for a secret file.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a master secret over Noise_IK",
	Long: `Run a handoff server that hands the master secret in --secret-file to
authorized clients over an encrypted Noise_IK channel.

The secret is sealed in an encrypted memory enclave for the lifetime of the
server and opened only while a response is built. The server generates or
loads its Noise static key from --key-file; clients need its public key
(see 'mastersecret pubkey'). Clients authenticate with their own static
key, whose public half must be listed with --authorized-key or in
--authorized-keys-file (one hex key per line, '#' starts a comment).

SIGTERM stops the server gracefully. SIGINT wipes locked memory and exits
immediately.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSecretFile, "secret-file", "",
		"path to the secret file in the --format encoding (required)")
	serveCmd.Flags().StringVar(&serveKeyFile, "key-file", defaultServerKeyFile,
		"path to Noise static key file (hex-encoded)")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", handoff.DefaultListenAddr,
		"TCP listen address")
	serveCmd.Flags().IntVar(&serveMaxConnections, "max-connections", handoff.DefaultMaxConnections,
		"maximum concurrent connections")
	serveCmd.Flags().StringSliceVar(&serveAuthorizedKeys, "authorized-key", nil,
		"hex-encoded client public key allowed to connect (repeatable)")
	serveCmd.Flags().StringVar(&serveAuthorizedKeysFile, "authorized-keys-file", "",
		"file listing hex-encoded client public keys")
}

// runServe serves until SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	sigCtx, sigStop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer sigStop()

	return serve(sigCtx, nil)
}

// serve starts the handoff server and blocks until ctx is done. ready, if
// not nil, receives the bound address once the server is listening.
func serve(ctx context.Context, ready chan<- string) error {
	if serveSecretFile == "" {
		return ErrSecretFileRequired
	}

	authorized, err := collectAuthorizedKeys(serveAuthorizedKeys, serveAuthorizedKeysFile)
	if err != nil {
		return err
	}

	ms, err := loadSecret(serveSecretFile)
	if err != nil {
		return err
	}
	fp, err := ms.Fingerprint()
	if err != nil {
		ms.Destroy()
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	sealed, err := ms.Seal()
	ms.Destroy()
	if err != nil {
		return fmt.Errorf("%w: sealing secret: %w", ErrSecretOperation, err)
	}
	defer sealed.Discard()

	staticKey, err := loadOrGenerateKey(serveKeyFile)
	if err != nil {
		return err
	}
	defer staticKey.Destroy()

	server, err := handoff.NewServer(&handoff.ServerConfig{
		ListenAddr:     serveListenAddr,
		StaticKey:      staticKey,
		AuthorizedKeys: authorized,
		Secrets:        sealed,
		MaxConnections: serveMaxConnections,
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}

	addr := server.Addr().String()
	slog.Info("serving master secret",
		"addr", addr,
		"fingerprint", fp,
		"server_key", staticKey.PublicHex())
	if ready != nil {
		ready <- addr
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer stopCancel()

	if err := server.Stop(stopCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	return nil
}

// collectAuthorizedKeys merges keys given on the command line with those
// listed in path. Duplicates are dropped.
func collectAuthorizedKeys(hexKeys []string, path string) ([][]byte, error) {
	all := append([]string(nil), hexKeys...)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, path, err)
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 || line[0] == '#' {
				continue
			}
			all = append(all, string(line))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, path, err)
		}
	}

	seen := make(map[string]bool, len(all))
	var keys [][]byte
	for _, k := range all {
		pub, err := noiseproto.ParsePublicKey(k)
		if err != nil {
			return nil, fmt.Errorf("%w: authorized key %q: %w", ErrInvalidInput, k, err)
		}
		if seen[string(pub)] {
			continue
		}
		seen[string(pub)] = true
		keys = append(keys, pub)
	}

	if len(keys) == 0 {
		return nil, ErrNoAuthorizedKeys
	}
	return keys, nil
}
