// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// generateCmd creates a new random master secret.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new master secret",
	Long: `Generate a new master secret with a 128-bit AES encryption key and a
160-bit HMAC-SHA256 key, and write its transfer buffer to --output (mode
0600) or stdout in the --format encoding.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

// inspectCmd prints the non-secret properties of a secret file.
var inspectCmd = &cobra.Command{
	Use:   "inspect [secret-file]",
	Short: "Show key sizes and fingerprint of a secret file",
	Long: `Decode a secret file (or stdin when omitted or "-") and print the key
sizes, algorithms and fingerprint. Key bytes are never printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	slog.Debug("generating master secret")

	ms, err := secret.Generate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	defer ms.Destroy()

	fp, err := ms.Fingerprint()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}

	if err := writeSecret(ms); err != nil {
		return err
	}
	slog.Info("generated master secret", "fingerprint", fp)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	ms, err := loadSecret(path)
	if err != nil {
		return err
	}
	defer ms.Destroy()

	enc, err := ms.EncryptionKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	mac, err := ms.MACKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	fp, err := ms.Fingerprint()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Encryption key: %d bytes (%s)\n", enc.Size(), enc.Purpose().Algorithm())
	fmt.Fprintf(w, "MAC key:        %d bytes (%s)\n", mac.Size(), mac.Purpose().Algorithm())
	fmt.Fprintf(w, "Fingerprint:    %s\n", fp)
	return nil
}
