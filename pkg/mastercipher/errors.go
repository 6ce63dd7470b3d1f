// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package mastercipher

import "errors"

var (
	// ErrDecryptionUnavailable is returned when the master secret backing
	// a Cipher can no longer be used, for example after Destroy. The
	// underlying secret error is wrapped alongside it.
	ErrDecryptionUnavailable = errors.New("mastercipher: decryption unavailable")

	// ErrAuthenticationFailed is returned when the HMAC tag does not match.
	// The key is wrong or the ciphertext was corrupted or tampered with.
	ErrAuthenticationFailed = errors.New("mastercipher: authentication failed")

	// ErrMalformedCiphertext is returned when the input is too short to
	// hold a tag and header, or when the body cannot be decompressed.
	ErrMalformedCiphertext = errors.New("mastercipher: malformed ciphertext")

	// ErrUnsupportedVersion is returned for an authenticated ciphertext
	// written by an unknown format version.
	ErrUnsupportedVersion = errors.New("mastercipher: unsupported format version")

	// ErrUnsupportedCompression is returned for an unknown compression
	// identifier, either in an option or in an authenticated header.
	ErrUnsupportedCompression = errors.New("mastercipher: unsupported compression")

	// ErrEmptyPlaintext is returned when asked to encrypt nothing.
	ErrEmptyPlaintext = errors.New("mastercipher: nothing to encrypt")

	// ErrPlaintextTooLarge is returned when a decompressed body exceeds
	// the configured limit.
	ErrPlaintextTooLarge = errors.New("mastercipher: plaintext exceeds size limit")
)
