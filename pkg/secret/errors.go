// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package secret holds short-lived symmetric key material in locked memory.
//
// A MasterSecret owns an encryption key and a separate message
// authentication key, each wrapped in a KeyHandle. Key bytes live in
// memguard-managed memory that is locked against swapping, excluded from
// core dumps and zeroed when the owning handle is destroyed. Every path
// that copies key material out of caller-supplied buffers wipes the source.
package secret

import "errors"

// Sentinel errors for the secret package.
var (
	// ErrInvalidKeyMaterial indicates empty or otherwise unusable key input
	// at construction time.
	ErrInvalidKeyMaterial = errors.New("secret: invalid key material")

	// ErrAlreadyDestroyed indicates an operation on key material that has
	// already been destroyed.
	ErrAlreadyDestroyed = errors.New("secret: already destroyed")

	// ErrMalformedTransferBuffer indicates a transfer buffer that violates
	// the length-prefixed encoding.
	ErrMalformedTransferBuffer = errors.New("secret: malformed transfer buffer")
)
