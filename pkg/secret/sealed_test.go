// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal_OpenRoundTrip(t *testing.T) {
	ms := newTestSecret(t)

	sealed, err := ms.Seal()
	require.NoError(t, err)
	assert.Equal(t, 8+16+20, sealed.Size())
	assert.False(t, ms.IsDestroyed(), "sealing leaves the source usable")

	for i := 0; i < 2; i++ {
		opened, err := sealed.Open()
		require.NoError(t, err)

		enc, err := opened.EncryptionKey()
		assert.Equal(t, seq(0x00, 16), mustBytes(t, enc, err))
		mac, err := opened.MACKey()
		assert.Equal(t, seq(0x10, 20), mustBytes(t, mac, err))
		opened.Destroy()
	}
}

func TestSealed_MasterSecretOpensIndependentCopies(t *testing.T) {
	ms := newTestSecret(t)
	sealed, err := ms.Seal()
	require.NoError(t, err)

	a, err := sealed.MasterSecret()
	require.NoError(t, err)
	b, err := sealed.MasterSecret()
	require.NoError(t, err)
	defer b.Destroy()

	a.Destroy()
	assert.False(t, b.IsDestroyed())
}

func TestSealed_Discard(t *testing.T) {
	ms := newTestSecret(t)
	sealed, err := ms.Seal()
	require.NoError(t, err)

	sealed.Discard()
	assert.Equal(t, 0, sealed.Size())
	_, err = sealed.Open()
	assert.ErrorIs(t, err, ErrAlreadyDestroyed)

	var nilSealed *Sealed
	_, err = nilSealed.Open()
	assert.ErrorIs(t, err, ErrAlreadyDestroyed)
	assert.NotPanics(t, nilSealed.Discard)
}
