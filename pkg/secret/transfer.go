// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/awnumar/memguard"
)

// lengthPrefixSize is the size of the big-endian length before each key.
const lengthPrefixSize = 4

// Encode serialises the secret into a transfer buffer:
//
//	[u32 len(enc)][enc][u32 len(mac)][mac]
//
// with big-endian lengths and nothing after the MAC key. The result is a
// plain heap slice; the caller owns it and should Wipe it once it has been
// handed over. EncodeLocked avoids the heap copy.
func (m *MasterSecret) Encode() ([]byte, error) {
	locked, err := m.EncodeLocked()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, locked.Size())
	copy(out, locked.Bytes())
	return out, nil
}

// EncodeLocked writes the transfer buffer into a frozen memguard buffer.
// The caller must Destroy the returned buffer.
func (m *MasterSecret) EncodeLocked() (*memguard.LockedBuffer, error) {
	enc, mac, err := m.views()
	if err != nil {
		return nil, err
	}
	if uint64(len(enc)) > math.MaxUint32 || uint64(len(mac)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: key too large for transfer encoding", ErrInvalidKeyMaterial)
	}

	buf := memguard.NewBuffer(2*lengthPrefixSize + len(enc) + len(mac))
	out := buf.Bytes()
	off := putField(out, 0, enc)
	putField(out, off, mac)
	buf.Freeze()
	return buf, nil
}

// putField writes a length-prefixed field at off and returns the offset
// just past it.
func putField(dst []byte, off int, field []byte) int {
	binary.BigEndian.PutUint32(dst[off:], uint32(len(field)))
	off += lengthPrefixSize
	off += copy(dst[off:], field)
	return off
}

// Decode parses a transfer buffer produced by Encode. The key bytes are
// copied straight into locked memory; buf itself is not modified. Use
// DecodeAndWipe when buf should not outlive the call.
func Decode(buf []byte) (*MasterSecret, error) {
	encField, off, err := readField(buf, 0, "encryption key")
	if err != nil {
		return nil, err
	}
	macField, off, err := readField(buf, off, "MAC key")
	if err != nil {
		return nil, err
	}
	if off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTransferBuffer, len(buf)-off)
	}

	enc, err := copyKeyHandle(encField, PurposeEncryption)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransferBuffer, err)
	}
	mac, err := copyKeyHandle(macField, PurposeAuthentication)
	if err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransferBuffer, err)
	}
	return &MasterSecret{encryptionKey: enc, macKey: mac}, nil
}

// DecodeAndWipe decodes buf and then wipes it, whether or not decoding
// succeeded.
func DecodeAndWipe(buf []byte) (*MasterSecret, error) {
	defer Wipe(buf)
	return Decode(buf)
}

// readField reads one length-prefixed field starting at off. The returned
// slice aliases buf.
func readField(buf []byte, off int, name string) ([]byte, int, error) {
	if len(buf)-off < lengthPrefixSize {
		return nil, 0, fmt.Errorf("%w: %s length prefix truncated (%d bytes left)",
			ErrMalformedTransferBuffer, name, len(buf)-off)
	}
	n := binary.BigEndian.Uint32(buf[off:])
	off += lengthPrefixSize
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: %s has zero length", ErrMalformedTransferBuffer, name)
	}
	if uint64(n) > uint64(len(buf)-off) {
		return nil, 0, fmt.Errorf("%w: %s declares %d bytes, %d available",
			ErrMalformedTransferBuffer, name, n, len(buf)-off)
	}
	end := off + int(n)
	return buf[off:end], end, nil
}
