// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

const (
	// defaultServerKeyFile is the default static key path for serve.
	defaultServerKeyFile = "mastersecret-server.key"

	// defaultClientKeyFile is the default static key path for keygen and fetch.
	defaultClientKeyFile = "mastersecret-client.key"
)

// keygenCmd generates a new Noise static keypair.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Noise static keypair",
	Long: `Generate a new Curve25519 static keypair for the handoff protocol.
The private key is written hex-encoded to --key-file with mode 0600 and the
public key is printed on stdout. Servers list client public keys with
--authorized-key; clients pass the server public key with --server-key.`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

// pubkeyCmd prints the public key of a key file.
var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Show the public key from a key file",
	Long: `Read a hex-encoded Noise static private key from a file and display
the corresponding Curve25519 public key as a hex string.`,
	Args: cobra.NoArgs,
	RunE: runPubkey,
}

func init() {
	keygenCmd.Flags().String("key-file", defaultClientKeyFile, "output file path for the private key")
	keygenCmd.Flags().Bool("force", false, "overwrite an existing key file")

	pubkeyCmd.Flags().String("key-file", "", "path to hex-encoded private key file (required)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")
	force, _ := cmd.Flags().GetBool("force")

	if keyFile == "" {
		return fmt.Errorf("%w: --key-file is required", ErrInvalidInput)
	}
	if !force {
		if _, err := os.Stat(keyFile); err == nil {
			return fmt.Errorf("%w: %s exists, use --force to overwrite", ErrInvalidInput, keyFile)
		}
	}

	slog.Debug("generating Curve25519 static keypair")

	key, err := noiseproto.GenerateStaticKey()
	if err != nil {
		return fmt.Errorf("%w: generating keypair: %w", ErrKeyOperation, err)
	}
	defer key.Destroy()

	if err := writeStaticKey(keyFile, key); err != nil {
		return err
	}

	slog.Info("private key written", "path", keyFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", key.PublicHex())
	return nil
}

func runPubkey(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")

	if keyFile == "" {
		return fmt.Errorf("%w: --key-file is required", ErrInvalidInput)
	}

	key, err := loadStaticKey(keyFile)
	if err != nil {
		return err
	}
	defer key.Destroy()

	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", key.PublicHex())
	return nil
}

// loadStaticKey reads a hex-encoded private key file. The file contents
// are wiped once the key is in locked memory.
func loadStaticKey(keyFile string) (*noiseproto.StaticKey, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading key file %s: %w", ErrFileOperation, keyFile, err)
	}
	defer secret.Wipe(data)

	trimmed := bytes.TrimSpace(data)
	priv := make([]byte, hex.DecodedLen(len(trimmed)))
	n, err := hex.Decode(priv, trimmed)
	if err != nil {
		secret.Wipe(priv)
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrKeyOperation, keyFile, err)
	}

	// LoadStaticKey wipes priv.
	key, err := noiseproto.LoadStaticKey(priv[:n])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrKeyOperation, keyFile, err)
	}
	return key, nil
}

// loadOrGenerateKey loads the static key at keyFile, or generates one and
// writes it there with 0600 permissions when the file does not exist.
func loadOrGenerateKey(keyFile string) (*noiseproto.StaticKey, error) {
	key, err := loadStaticKey(keyFile)
	if err == nil {
		slog.Info("loaded Noise static key", "path", keyFile)
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	slog.Debug("generating new Noise static key")
	key, err = noiseproto.GenerateStaticKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	if err := writeStaticKey(keyFile, key); err != nil {
		key.Destroy()
		return nil, err
	}

	slog.Info("key written", "path", keyFile, "public_key", key.PublicHex())
	return key, nil
}

func writeStaticKey(keyFile string, key *noiseproto.StaticKey) error {
	privateHex, err := noiseproto.EncodeStaticKey(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	if err := os.WriteFile(keyFile, []byte(privateHex+"\n"), 0600); err != nil {
		return fmt.Errorf("%w: writing key file %s: %w", ErrFileOperation, keyFile, err)
	}
	return nil
}
