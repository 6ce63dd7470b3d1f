// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knownTransferHex = "00000010" +
	"000102030405060708090a0b0c0d0e0f" +
	"00000014" +
	"101112131415161718191a1b1c1d1e1f20212223"

func TestEncode_KnownVector(t *testing.T) {
	ms := newTestSecret(t)

	buf, err := ms.Encode()
	require.NoError(t, err)
	defer Wipe(buf)

	assert.Equal(t, knownTransferHex, hex.EncodeToString(buf))
}

func TestEncodeLocked_MatchesEncode(t *testing.T) {
	ms := newTestSecret(t)

	plain, err := ms.Encode()
	require.NoError(t, err)
	defer Wipe(plain)

	locked, err := ms.EncodeLocked()
	require.NoError(t, err)
	defer locked.Destroy()

	assert.Equal(t, plain, locked.Bytes())
	assert.False(t, locked.IsMutable())
}

func TestDecode_KnownVectorScenario(t *testing.T) {
	buf, err := hex.DecodeString(knownTransferHex)
	require.NoError(t, err)

	ms, err := Decode(buf)
	require.NoError(t, err)

	enc, err := ms.EncryptionKey()
	assert.Equal(t, seq(0x00, 16), mustBytes(t, enc, err))
	assert.Equal(t, PurposeEncryption, enc.Purpose())
	mac, err := ms.MACKey()
	assert.Equal(t, seq(0x10, 20), mustBytes(t, mac, err))
	assert.Equal(t, PurposeAuthentication, mac.Purpose())

	ms.Destroy()
	_, err = ms.EncryptionKey()
	assert.ErrorIs(t, err, ErrAlreadyDestroyed)
}

func TestDecode_LeavesInputIntact(t *testing.T) {
	buf, err := hex.DecodeString(knownTransferHex)
	require.NoError(t, err)
	orig := bytes.Clone(buf)

	ms, err := Decode(buf)
	require.NoError(t, err)
	defer ms.Destroy()

	assert.Equal(t, orig, buf)
}

func TestDecode_KeysDoNotAliasInput(t *testing.T) {
	buf, err := hex.DecodeString(knownTransferHex)
	require.NoError(t, err)

	ms, err := Decode(buf)
	require.NoError(t, err)
	defer ms.Destroy()

	Wipe(buf)
	enc, err := ms.EncryptionKey()
	assert.Equal(t, seq(0x00, 16), mustBytes(t, enc, err))
}

func TestDecodeAndWipe(t *testing.T) {
	buf, err := hex.DecodeString(knownTransferHex)
	require.NoError(t, err)

	ms, err := DecodeAndWipe(buf)
	require.NoError(t, err)
	defer ms.Destroy()

	assert.Equal(t, make([]byte, len(buf)), buf)
	mac, err := ms.MACKey()
	assert.Equal(t, seq(0x10, 20), mustBytes(t, mac, err))
}

func TestDecodeAndWipe_WipesOnFailure(t *testing.T) {
	buf := []byte{0, 0, 0, 2, 0xAA, 0xBB, 0, 0, 0, 1, 0xCC, 0xFF}
	_, err := DecodeAndWipe(buf)
	assert.ErrorIs(t, err, ErrMalformedTransferBuffer)
	assert.Equal(t, make([]byte, len(buf)), buf)
}

func TestRoundTrip(t *testing.T) {
	sizes := []struct {
		enc, mac int
	}{
		{16, 20},
		{32, 32},
		{1, 1},
		{24, 64},
	}
	for _, sz := range sizes {
		encKey, macKey := seq(0x30, sz.enc), seq(0x90, sz.mac)
		enc, err := NewKeyHandle(bytes.Clone(encKey), PurposeEncryption)
		require.NoError(t, err)
		mac, err := NewKeyHandle(bytes.Clone(macKey), PurposeAuthentication)
		require.NoError(t, err)
		ms, err := New(enc, mac)
		require.NoError(t, err)

		buf, err := ms.Encode()
		require.NoError(t, err)
		assert.Len(t, buf, 8+sz.enc+sz.mac)

		decoded, err := DecodeAndWipe(buf)
		require.NoError(t, err)

		gotEnc, err := decoded.EncryptionKey()
		assert.Equal(t, encKey, mustBytes(t, gotEnc, err))
		gotMAC, err := decoded.MACKey()
		assert.Equal(t, macKey, mustBytes(t, gotMAC, err))

		decoded.Destroy()
		ms.Destroy()
	}
}

func TestRoundTrip_Generated(t *testing.T) {
	ms, err := Generate()
	require.NoError(t, err)
	defer ms.Destroy()

	buf, err := ms.Encode()
	require.NoError(t, err)
	decoded, err := DecodeAndWipe(buf)
	require.NoError(t, err)
	defer decoded.Destroy()

	a, err := ms.EncryptionKey()
	require.NoError(t, err)
	b, err := decoded.EncryptionKey()
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	fa, err := ms.Fingerprint()
	require.NoError(t, err)
	fb, err := decoded.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestDecode_Malformed(t *testing.T) {
	valid, err := hex.DecodeString(knownTransferHex)
	require.NoError(t, err)

	tests := []struct {
		name string
		buf  []byte
	}{
		{"nil buffer", nil},
		{"empty buffer", []byte{}},
		{"truncated first prefix", []byte{0, 0, 0}},
		{"first length exceeds remainder", []byte{0, 0, 0, 5, 1, 2, 3}},
		{"first length zero", []byte{0, 0, 0, 0, 0, 0, 0, 1, 0xAA}},
		{"missing second prefix", []byte{0, 0, 0, 1, 0xAA}},
		{"truncated second prefix", []byte{0, 0, 0, 1, 0xAA, 0, 0}},
		{"second length zero", []byte{0, 0, 0, 1, 0xAA, 0, 0, 0, 0}},
		{"second length exceeds remainder", []byte{0, 0, 0, 1, 0xAA, 0, 0, 0, 3, 0xBB}},
		{"huge declared length", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xAA}},
		{"trailing byte", append(bytes.Clone(valid), 0x00)},
		{"truncated valid buffer", valid[:len(valid)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := Decode(tt.buf)
			assert.Nil(t, ms)
			assert.ErrorIs(t, err, ErrMalformedTransferBuffer)
		})
	}
}
