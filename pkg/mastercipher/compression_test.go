// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package mastercipher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("mastersecret"), 1024)

	for _, c := range []Compression{CompressionGzip, CompressionSnappy, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			// Twice, so pooled writers and readers are reused.
			for i := 0; i < 2; i++ {
				packed, err := compress(c, payload)
				require.NoError(t, err)
				assert.Less(t, len(packed), len(payload))

				out, err := decompress(c, packed, int64(len(payload)))
				require.NoError(t, err)
				assert.Equal(t, payload, out)
			}
		})
	}
}

func TestCompressionNonePassesThrough(t *testing.T) {
	in := []byte("as is")
	out, err := compress(CompressionNone, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecompressCorrupt(t *testing.T) {
	for _, c := range []Compression{CompressionGzip, CompressionSnappy, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			_, err := decompress(c, []byte("corrupted"), 1024)
			assert.ErrorIs(t, err, ErrMalformedCiphertext)
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"GZIP", CompressionGzip, false},
		{" snappy ", CompressionSnappy, false},
		{"lz4", CompressionLZ4, false},
		{"zstd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCompression)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "compression(9)", Compression(9).String())
}
