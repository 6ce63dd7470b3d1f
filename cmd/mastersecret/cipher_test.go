// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-mastersecret/pkg/mastercipher"
)

// setCipherFlags resets the encrypt and decrypt flags for one test.
func setCipherFlags(t *testing.T, secretFile, in string, armor bool, compression string) {
	t.Helper()
	armorValue := "false"
	if armor {
		armorValue = "true"
	}
	for _, cmd := range []*cobra.Command{encryptCmd, decryptCmd} {
		require.NoError(t, cmd.Flags().Set("secret-file", secretFile))
		require.NoError(t, cmd.Flags().Set("in", in))
		require.NoError(t, cmd.Flags().Set("armor", armorValue))
	}
	require.NoError(t, encryptCmd.Flags().Set("compression", compression))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plaintext := bytes.Repeat([]byte("ledger entry 0042; "), 200)

	for _, compression := range []string{"none", "gzip", "snappy", "lz4"} {
		for _, armor := range []bool{false, true} {
			name := compression
			if armor {
				name += "/armor"
			}
			t.Run(name, func(t *testing.T) {
				dir := t.TempDir()
				secretPath := writeTestSecret(t, dir, formatHex)
				inPath := filepath.Join(dir, "plain.txt")
				encPath := filepath.Join(dir, "cipher.bin")
				outPath := filepath.Join(dir, "roundtrip.txt")
				require.NoError(t, os.WriteFile(inPath, plaintext, 0600))

				setGlobals(t, formatHex, encPath)
				setCipherFlags(t, secretPath, inPath, armor, compression)
				require.NoError(t, runEncrypt(encryptCmd, nil))

				ciphertext, err := os.ReadFile(encPath)
				require.NoError(t, err)
				assert.NotContains(t, string(ciphertext), "ledger entry")
				if armor {
					assert.True(t, strings.HasSuffix(string(ciphertext), "\n"))
				}

				outputFile = outPath
				setCipherFlags(t, secretPath, encPath, armor, compression)
				require.NoError(t, runDecrypt(decryptCmd, nil))

				got, err := os.ReadFile(outPath)
				require.NoError(t, err)
				assert.Equal(t, plaintext, got)
			})
		}
	}
}

func TestEncrypt_Stdin(t *testing.T) {
	dir := t.TempDir()
	secretPath := writeTestSecret(t, dir, formatHex)
	encPath := filepath.Join(dir, "cipher.bin")

	old := stdin
	stdin = strings.NewReader("from a pipe")
	defer func() { stdin = old }()

	setGlobals(t, formatHex, encPath)
	setCipherFlags(t, secretPath, "-", false, "snappy")
	require.NoError(t, runEncrypt(encryptCmd, nil))

	ciphertext, err := os.ReadFile(encPath)
	require.NoError(t, err)
	assert.Equal(t, byte(mastercipher.CompressionSnappy), ciphertext[33])
}

func TestDecrypt_TamperedInput(t *testing.T) {
	dir := t.TempDir()
	secretPath := writeTestSecret(t, dir, formatHex)
	inPath := filepath.Join(dir, "plain.txt")
	encPath := filepath.Join(dir, "cipher.bin")
	outPath := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(inPath, []byte("attack at dawn"), 0600))

	setGlobals(t, formatHex, encPath)
	setCipherFlags(t, secretPath, inPath, false, "none")
	require.NoError(t, runEncrypt(encryptCmd, nil))

	ciphertext, err := os.ReadFile(encPath)
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0x01
	require.NoError(t, os.WriteFile(encPath, ciphertext, 0600))

	outputFile = outPath
	setCipherFlags(t, secretPath, encPath, false, "none")
	err = runDecrypt(decryptCmd, nil)
	assert.ErrorIs(t, err, ErrCipherOperation)
	assert.ErrorIs(t, err, mastercipher.ErrAuthenticationFailed)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "no plaintext should be written")
}

func TestCipherCommands_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	secretPath := writeTestSecret(t, dir, formatHex)
	setGlobals(t, formatHex, filepath.Join(dir, "out"))

	setCipherFlags(t, "", "-", false, "none")
	assert.ErrorIs(t, runEncrypt(encryptCmd, nil), ErrInvalidInput)
	assert.ErrorIs(t, runDecrypt(decryptCmd, nil), ErrInvalidInput)

	setCipherFlags(t, secretPath, "-", false, "zstd")
	err := runEncrypt(encryptCmd, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, mastercipher.ErrUnsupportedCompression)

	setCipherFlags(t, secretPath, filepath.Join(dir, "missing"), false, "none")
	assert.ErrorIs(t, runEncrypt(encryptCmd, nil), ErrFileOperation)
	assert.ErrorIs(t, runDecrypt(decryptCmd, nil), ErrFileOperation)
}

func TestDecrypt_WrongSecret(t *testing.T) {
	dir := t.TempDir()
	secretPath := writeTestSecret(t, dir, formatHex)
	otherPath := filepath.Join(dir, "other.hex")
	inPath := filepath.Join(dir, "plain.txt")
	encPath := filepath.Join(dir, "cipher.txt")
	require.NoError(t, os.WriteFile(inPath, []byte("payroll"), 0600))

	setGlobals(t, formatHex, otherPath)
	require.NoError(t, runGenerate(generateCmd, nil))

	outputFile = encPath
	setCipherFlags(t, secretPath, inPath, true, "none")
	require.NoError(t, runEncrypt(encryptCmd, nil))

	outputFile = filepath.Join(dir, "out.txt")
	setCipherFlags(t, otherPath, encPath, true, "none")
	err := runDecrypt(decryptCmd, nil)
	assert.ErrorIs(t, err, mastercipher.ErrAuthenticationFailed)
}
