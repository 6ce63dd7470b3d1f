// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transferHex is the transfer encoding of the secret built by newTestSecret.
const transferHex = "00000010" + "000102030405060708090a0b0c0d0e0f" +
	"00000014" + "101112131415161718191a1b1c1d1e1f20212223"

// mockProvider implements SecretProvider for testing.
type mockProvider struct {
	err   error
	calls int
}

func (m *mockProvider) MasterSecret() (*secret.MasterSecret, error) {
	m.calls++
	return nil, m.err
}

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// newTestSecret builds a MasterSecret with a 16-byte encryption key
// 0x00..0x0F and a 20-byte MAC key 0x10..0x23.
func newTestSecret(t *testing.T) *secret.MasterSecret {
	t.Helper()
	enc, err := secret.NewKeyHandle(seq(0x00, 16), secret.PurposeEncryption)
	require.NoError(t, err)
	mac, err := secret.NewKeyHandle(seq(0x10, 20), secret.PurposeAuthentication)
	require.NoError(t, err)
	ms, err := secret.New(enc, mac)
	require.NoError(t, err)
	t.Cleanup(ms.Destroy)
	return ms
}

// newTestProvider seals the test secret so every request opens a copy.
func newTestProvider(t *testing.T) *secret.Sealed {
	t.Helper()
	sealed, err := newTestSecret(t).Seal()
	require.NoError(t, err)
	t.Cleanup(sealed.Discard)
	return sealed
}

func TestHandler_GetMasterSecret(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	payload, err := h.Handle(&Request{Method: MethodGetMasterSecret})
	require.NoError(t, err)
	assert.Equal(t, transferHex, hex.EncodeToString(payload))

	ms, err := secret.Decode(payload)
	require.NoError(t, err)
	defer ms.Destroy()
	assert.False(t, ms.IsDestroyed())
}

func TestHandler_GetMasterSecret_Repeatable(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	for i := 0; i < 3; i++ {
		payload, err := h.Handle(&Request{Method: MethodGetMasterSecret})
		require.NoError(t, err, "request %d", i)
		assert.Equal(t, transferHex, hex.EncodeToString(payload))
	}
}

func TestHandler_Describe(t *testing.T) {
	ms := newTestSecret(t)
	fp, err := ms.Fingerprint()
	require.NoError(t, err)

	h := NewHandler(newTestProvider(t), nil)
	payload, err := h.Handle(&Request{Method: MethodDescribe})
	require.NoError(t, err)

	var d Description
	require.NoError(t, json.Unmarshal(payload, &d))
	assert.Equal(t, Description{
		EncryptionKeySize:   16,
		EncryptionAlgorithm: "AES",
		MACKeySize:          20,
		MACAlgorithm:        "HmacSHA256",
		Fingerprint:         fp,
	}, d)

	assert.NotContains(t, string(payload), hex.EncodeToString(seq(0x00, 16)))
}

func TestHandler_UnknownMethod(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	for _, method := range []string{"nonexistent_method", ""} {
		_, err := h.Handle(&Request{Method: method})
		assert.ErrorIs(t, err, ErrMethodNotFound, "method %q", method)
	}
}

func TestHandler_NilRequest(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	_, err := h.Handle(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHandler_NilProvider(t *testing.T) {
	h := NewHandler(nil, nil)

	for _, method := range []string{MethodGetMasterSecret, MethodDescribe} {
		_, err := h.Handle(&Request{Method: method})
		assert.ErrorIs(t, err, ErrProviderNotConfigured, method)
	}
}

func TestHandler_ProviderError(t *testing.T) {
	providerErr := errors.New("sealed secret discarded")
	p := &mockProvider{err: providerErr}
	h := NewHandler(p, nil)

	_, err := h.Handle(&Request{Method: MethodGetMasterSecret})
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 1, p.calls)
}

func TestHandler_DiscardedProvider(t *testing.T) {
	sealed := newTestProvider(t)
	sealed.Discard()
	h := NewHandler(sealed, nil)

	_, err := h.Handle(&Request{Method: MethodGetMasterSecret})
	assert.ErrorIs(t, err, secret.ErrAlreadyDestroyed)
}

func TestHandler_HandleRaw(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	resp := h.HandleRaw([]byte(`{"method":"get_master_secret"}`))
	require.NotEmpty(t, resp)
	assert.Equal(t, statusOK, resp[0])
	assert.Equal(t, transferHex, hex.EncodeToString(resp[1:]))
}

func TestHandler_HandleRaw_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler *Handler
		req     string
		want    error
	}{
		{"bad json", NewHandler(newTestProvider(t), nil), `{not json`, ErrInvalidRequest},
		{"unknown method", NewHandler(newTestProvider(t), nil), `{"method":"get_encryption_key"}`, ErrMethodNotFound},
		{"no provider", NewHandler(nil, nil), `{"method":"describe"}`, ErrProviderNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.handler.HandleRaw([]byte(tt.req))
			require.NotEmpty(t, resp)
			assert.Equal(t, statusError, resp[0])
			assert.True(t, strings.HasPrefix(string(resp[1:]), tt.want.Error()),
				"response %q should start with %q", resp[1:], tt.want)

			_, err := parseResponse(resp)
			assert.ErrorIs(t, err, ErrServerError)
		})
	}
}

func TestParseResponse(t *testing.T) {
	payload, err := parseResponse([]byte{statusOK, 0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, payload)

	payload, err = parseResponse([]byte{statusOK})
	require.NoError(t, err)
	assert.Empty(t, payload)

	_, err = parseResponse(nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = parseResponse([]byte{7, 'x'})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = parseResponse(append([]byte{statusError}, "boom"...))
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "boom")
}
