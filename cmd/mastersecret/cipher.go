// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-mastersecret/pkg/mastercipher"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// encryptCmd encrypts a file with a master secret.
var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt data with a master secret",
	Long: `Encrypt --in (stdin by default) with the AES key of the secret in
--secret-file and authenticate it with the secret's HMAC-SHA256 key.
The plaintext may be compressed first with --compression (none, gzip,
snappy or lz4). With --armor the ciphertext is written as base64 text.`,
	Args: cobra.NoArgs,
	RunE: runEncrypt,
}

// decryptCmd verifies and decrypts data produced by encrypt.
var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt data with a master secret",
	Long: `Verify and decrypt --in (stdin by default) with the secret in
--secret-file. The MAC is checked before anything is decrypted; the
compression used at encryption time is read from the ciphertext header.
Pass --armor for base64 input.`,
	Args: cobra.NoArgs,
	RunE: runDecrypt,
}

func init() {
	for _, cmd := range []*cobra.Command{encryptCmd, decryptCmd} {
		cmd.Flags().String("secret-file", "", "path to the secret file in the --format encoding (required)")
		cmd.Flags().String("in", "-", "input file, or - for stdin")
		cmd.Flags().Bool("armor", false, "base64 ciphertext")
	}
	encryptCmd.Flags().String("compression", "none", "compress before encrypting (none|gzip|snappy|lz4)")
}

// openCipher loads the secret named by --secret-file and returns a cipher
// over it. The caller destroys the secret.
func openCipher(cmd *cobra.Command, opts ...mastercipher.Option) (*mastercipher.Cipher, *secret.MasterSecret, error) {
	secretFile, _ := cmd.Flags().GetString("secret-file")
	if secretFile == "" {
		return nil, nil, fmt.Errorf("%w: --secret-file is required", ErrInvalidInput)
	}
	ms, err := loadSecret(secretFile)
	if err != nil {
		return nil, nil, err
	}
	return mastercipher.New(ms, opts...), ms, nil
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	armor, _ := cmd.Flags().GetBool("armor")
	compressionName, _ := cmd.Flags().GetString("compression")

	compression, err := mastercipher.ParseCompression(compressionName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	c, ms, err := openCipher(cmd, mastercipher.WithCompression(compression))
	if err != nil {
		return err
	}
	defer ms.Destroy()

	plaintext, err := readInput(in)
	if err != nil {
		return err
	}
	defer secret.Wipe(plaintext)

	var out []byte
	if armor {
		var s string
		s, err = c.EncryptToString(plaintext)
		out = []byte(s + "\n")
	} else {
		out, err = c.Encrypt(plaintext)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCipherOperation, err)
	}

	slog.Debug("encrypted", "input", displayPath(in), "plaintext_bytes", len(plaintext),
		"ciphertext_bytes", len(out), "compression", compression)
	return writeOutput(out)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	armor, _ := cmd.Flags().GetBool("armor")

	c, ms, err := openCipher(cmd)
	if err != nil {
		return err
	}
	defer ms.Destroy()

	data, err := readInput(in)
	if err != nil {
		return err
	}

	var plaintext []byte
	if armor {
		plaintext, err = c.DecryptString(string(bytes.TrimSpace(data)))
	} else {
		plaintext, err = c.Decrypt(data)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCipherOperation, err)
	}
	defer secret.Wipe(plaintext)

	slog.Debug("decrypted", "input", displayPath(in), "plaintext_bytes", len(plaintext))
	return writeOutput(plaintext)
}
