// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"fmt"
	"log/slog"

	"github.com/awnumar/memguard"
)

// Purpose tags what a key is used for.
type Purpose uint8

// Supported key purposes.
const (
	// PurposeEncryption marks a symmetric encryption key (AES).
	PurposeEncryption Purpose = iota + 1

	// PurposeAuthentication marks a message authentication key (HMAC).
	PurposeAuthentication

	// PurposeKeyAgreement marks a Diffie-Hellman private key (Curve25519).
	PurposeKeyAgreement
)

// purposeNames maps each purpose to its name and algorithm tag.
var purposeNames = map[Purpose][2]string{
	PurposeEncryption:     {"encryption", "AES"},
	PurposeAuthentication: {"authentication", "HmacSHA256"},
	PurposeKeyAgreement:   {"key-agreement", "Curve25519"},
}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	_, ok := purposeNames[p]
	return ok
}

// String returns the purpose name, e.g. "encryption".
func (p Purpose) String() string {
	if n, ok := purposeNames[p]; ok {
		return n[0]
	}
	return fmt.Sprintf("purpose(%d)", uint8(p))
}

// Algorithm returns the algorithm tag associated with the purpose.
func (p Purpose) Algorithm() string {
	if n, ok := purposeNames[p]; ok {
		return n[1]
	}
	return ""
}

// onWiped is a test-only inspection hook. When set, Destroy calls it with
// the backing memory after zeroing and before the memory is released.
var onWiped func(p Purpose, raw []byte)

// KeyHandle owns the bytes of a single key. The bytes live in a frozen
// memguard buffer and are zeroed when the handle is destroyed. A handle is
// owned by exactly one holder; copies are made explicitly with Duplicate.
type KeyHandle struct {
	buf     *memguard.LockedBuffer
	purpose Purpose
	size    int
}

// NewKeyHandle takes ownership of b and returns a handle for it. The
// contents of b are moved into locked memory and b is wiped before
// NewKeyHandle returns, including when it fails.
func NewKeyHandle(b []byte, p Purpose) (*KeyHandle, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty %s key", ErrInvalidKeyMaterial, p)
	}
	if !p.Valid() {
		Wipe(b)
		return nil, fmt.Errorf("%w: unknown purpose %d", ErrInvalidKeyMaterial, uint8(p))
	}
	return wrap(memguard.NewBufferFromBytes(b), p), nil
}

// newRandomKeyHandle generates size random bytes directly in locked memory.
func newRandomKeyHandle(size int, p Purpose) (*KeyHandle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: key size must be positive, got %d", ErrInvalidKeyMaterial, size)
	}
	return wrap(memguard.NewBufferRandom(size), p), nil
}

// copyKeyHandle copies src into a freshly allocated locked buffer. src is
// left untouched.
func copyKeyHandle(src []byte, p Purpose) (*KeyHandle, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: empty %s key", ErrInvalidKeyMaterial, p)
	}
	buf := memguard.NewBuffer(len(src))
	buf.Copy(src)
	buf.Freeze()
	return wrap(buf, p), nil
}

func wrap(buf *memguard.LockedBuffer, p Purpose) *KeyHandle {
	return &KeyHandle{buf: buf, purpose: p, size: buf.Size()}
}

// Purpose returns the purpose tag of the key.
func (h *KeyHandle) Purpose() Purpose {
	return h.purpose
}

// Size returns the key length in bytes. It remains available after Destroy.
func (h *KeyHandle) Size() int {
	return h.size
}

// IsDestroyed reports whether the handle has been destroyed. A nil handle
// counts as destroyed.
func (h *KeyHandle) IsDestroyed() bool {
	return h == nil || h.buf == nil || !h.buf.IsAlive()
}

// Bytes returns a read-only view of the key. The view aliases locked memory
// that is unmapped by Destroy; do not retain it past the current operation
// and never write to it.
func (h *KeyHandle) Bytes() ([]byte, error) {
	if h.IsDestroyed() {
		return nil, fmt.Errorf("%w: %s key", ErrAlreadyDestroyed, h.purposeOrUnknown())
	}
	return h.buf.Bytes(), nil
}

// Use calls fn with a read-only view of the key and returns its error.
func (h *KeyHandle) Use(fn func(key []byte) error) error {
	key, err := h.Bytes()
	if err != nil {
		return err
	}
	return fn(key)
}

// Duplicate returns an independent handle holding a copy of the key. The
// copy goes straight from one locked buffer to another.
func (h *KeyHandle) Duplicate() (*KeyHandle, error) {
	key, err := h.Bytes()
	if err != nil {
		return nil, err
	}
	return copyKeyHandle(key, h.purpose)
}

// Equal reports in constant time whether h and other hold the same bytes.
// It returns false if either handle is destroyed.
func (h *KeyHandle) Equal(other *KeyHandle) bool {
	if h.IsDestroyed() || other.IsDestroyed() {
		return false
	}
	return h.buf.EqualTo(other.buf.Bytes())
}

// Destroy zeros the key bytes and releases the locked memory. It is safe
// to call more than once and on a nil handle.
func (h *KeyHandle) Destroy() {
	if h.IsDestroyed() {
		return
	}
	h.buf.Melt()
	h.buf.Wipe()
	if onWiped != nil {
		onWiped(h.purpose, h.buf.Bytes())
	}
	h.buf.Destroy()
}

// String describes the handle without revealing key material.
func (h *KeyHandle) String() string {
	if h == nil {
		return "KeyHandle(nil)"
	}
	state := "live"
	if h.IsDestroyed() {
		state = "destroyed"
	}
	return fmt.Sprintf("KeyHandle(%s, %d bytes, %s)", h.purpose, h.size, state)
}

// GoString keeps %#v from dumping the backing buffer.
func (h *KeyHandle) GoString() string {
	return h.String()
}

// LogValue implements slog.LogValuer with key bytes redacted.
func (h *KeyHandle) LogValue() slog.Value {
	if h == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("purpose", h.purpose.String()),
		slog.Int("size", h.size),
		slog.Bool("destroyed", h.IsDestroyed()),
	)
}

func (h *KeyHandle) purposeOrUnknown() string {
	if h == nil {
		return "nil"
	}
	return h.purpose.String()
}
