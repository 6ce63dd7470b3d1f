// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

func TestGenerate_WritesSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.secret")
	setGlobals(t, formatHex, path)

	require.NoError(t, runGenerate(generateCmd, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Len(t, raw, 4+secret.EncryptionKeySize+4+secret.MACKeySize)

	ms, err := secret.Decode(raw)
	require.NoError(t, err)
	defer ms.Destroy()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGenerate_Unique(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")

	setGlobals(t, formatRaw, a)
	require.NoError(t, runGenerate(generateCmd, nil))
	outputFile = b
	require.NoError(t, runGenerate(generateCmd, nil))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestInspect_PrintsMetadata(t *testing.T) {
	path := writeTestSecret(t, t.TempDir(), formatBase64)
	setGlobals(t, formatBase64, "")

	var out bytes.Buffer
	inspectCmd.SetOut(&out)
	defer inspectCmd.SetOut(nil)

	require.NoError(t, runInspect(inspectCmd, []string{path}))

	raw, err := hex.DecodeString(transferHex)
	require.NoError(t, err)
	ms, err := secret.Decode(raw)
	require.NoError(t, err)
	defer ms.Destroy()
	fp, err := ms.Fingerprint()
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Encryption key: 16 bytes (AES)")
	assert.Contains(t, text, "MAC key:        20 bytes (HmacSHA256)")
	assert.Contains(t, text, "Fingerprint:    "+fp)
	assert.NotContains(t, text, "000102030405")
}

func TestInspect_Stdin(t *testing.T) {
	setGlobals(t, formatHex, "")
	old := stdin
	stdin = strings.NewReader(transferHex + "\n")
	defer func() { stdin = old }()

	var out bytes.Buffer
	inspectCmd.SetOut(&out)
	defer inspectCmd.SetOut(nil)

	require.NoError(t, runInspect(inspectCmd, nil))
	assert.Contains(t, out.String(), "Fingerprint:")
}

func TestInspect_MissingFile(t *testing.T) {
	setGlobals(t, formatHex, "")

	err := runInspect(inspectCmd, []string{"/nonexistent/secret"})
	assert.ErrorIs(t, err, ErrFileOperation)
}
