// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Key sizes used by Generate.
const (
	// EncryptionKeySize is the length of a generated AES-128 key.
	EncryptionKeySize = 16

	// MACKeySize is the length of a generated 160-bit MAC key.
	MACKeySize = 20
)

// MasterSecret owns the encryption key and the MAC key of an account. The
// two handles are owned exclusively and are destroyed together.
//
// MasterSecret performs no locking. Callers sharing one across goroutines
// must serialise Destroy against every other method.
type MasterSecret struct {
	encryptionKey *KeyHandle
	macKey        *KeyHandle
}

// New takes ownership of enc and mac and returns a MasterSecret holding
// them. Both handles must be live, distinct and tagged with
// PurposeEncryption and PurposeAuthentication respectively.
func New(enc, mac *KeyHandle) (*MasterSecret, error) {
	switch {
	case enc.IsDestroyed():
		return nil, fmt.Errorf("%w: encryption key is nil or destroyed", ErrInvalidKeyMaterial)
	case mac.IsDestroyed():
		return nil, fmt.Errorf("%w: MAC key is nil or destroyed", ErrInvalidKeyMaterial)
	case enc == mac:
		return nil, fmt.Errorf("%w: encryption and MAC key share a handle", ErrInvalidKeyMaterial)
	case enc.Purpose() != PurposeEncryption:
		return nil, fmt.Errorf("%w: encryption key tagged %s", ErrInvalidKeyMaterial, enc.Purpose())
	case mac.Purpose() != PurposeAuthentication:
		return nil, fmt.Errorf("%w: MAC key tagged %s", ErrInvalidKeyMaterial, mac.Purpose())
	}
	return &MasterSecret{encryptionKey: enc, macKey: mac}, nil
}

// Generate creates a MasterSecret with a random EncryptionKeySize-byte
// encryption key and a random MACKeySize-byte MAC key. The random bytes
// are produced inside locked memory.
func Generate() (*MasterSecret, error) {
	enc, err := newRandomKeyHandle(EncryptionKeySize, PurposeEncryption)
	if err != nil {
		return nil, err
	}
	mac, err := newRandomKeyHandle(MACKeySize, PurposeAuthentication)
	if err != nil {
		enc.Destroy()
		return nil, err
	}
	return New(enc, mac)
}

// EncryptionKey returns the encryption key handle. Ownership stays with
// the MasterSecret.
func (m *MasterSecret) EncryptionKey() (*KeyHandle, error) {
	if m.IsDestroyed() {
		return nil, fmt.Errorf("%w: master secret", ErrAlreadyDestroyed)
	}
	return m.encryptionKey, nil
}

// MACKey returns the MAC key handle. Ownership stays with the MasterSecret.
func (m *MasterSecret) MACKey() (*KeyHandle, error) {
	if m.IsDestroyed() {
		return nil, fmt.Errorf("%w: master secret", ErrAlreadyDestroyed)
	}
	return m.macKey, nil
}

// Use calls fn with read-only views of both keys. The views are only valid
// inside fn.
func (m *MasterSecret) Use(fn func(enc, mac []byte) error) error {
	enc, mac, err := m.views()
	if err != nil {
		return err
	}
	return fn(enc, mac)
}

// Clone returns an independent MasterSecret holding copies of both keys.
// The receiver is left untouched. Cloning fails with ErrAlreadyDestroyed
// if either key has been destroyed.
func (m *MasterSecret) Clone() (*MasterSecret, error) {
	if _, _, err := m.views(); err != nil {
		return nil, err
	}
	enc, err := m.encryptionKey.Duplicate()
	if err != nil {
		return nil, err
	}
	mac, err := m.macKey.Duplicate()
	if err != nil {
		enc.Destroy()
		return nil, err
	}
	return &MasterSecret{encryptionKey: enc, macKey: mac}, nil
}

// Fingerprint returns a short hex identifier derived from both keys. It is
// meant for operators to compare secrets, not as key material.
func (m *MasterSecret) Fingerprint() (string, error) {
	enc, mac, err := m.views()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte("mastersecret-fingerprint"))
	h.Write(enc)
	h.Write(mac)
	return hex.EncodeToString(h.Sum(nil)[:8]), nil
}

// Destroy zeros and releases both keys. Both handles are always destroyed,
// even if one of them already was. Destroy is idempotent.
func (m *MasterSecret) Destroy() {
	if m == nil {
		return
	}
	m.encryptionKey.Destroy()
	m.macKey.Destroy()
}

// Close destroys the secret. It always returns nil.
func (m *MasterSecret) Close() error {
	m.Destroy()
	return nil
}

// IsDestroyed reports whether both keys have been destroyed.
func (m *MasterSecret) IsDestroyed() bool {
	if m == nil {
		return true
	}
	return m.encryptionKey.IsDestroyed() && m.macKey.IsDestroyed()
}

// String describes the secret without revealing key material.
func (m *MasterSecret) String() string {
	if m == nil {
		return "MasterSecret(nil)"
	}
	return fmt.Sprintf("MasterSecret(enc=%s, mac=%s)", m.encryptionKey, m.macKey)
}

// GoString keeps %#v from dumping the key handles.
func (m *MasterSecret) GoString() string {
	return m.String()
}

// LogValue implements slog.LogValuer with key bytes redacted.
func (m *MasterSecret) LogValue() slog.Value {
	if m == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.Any("encryption_key", m.encryptionKey),
		slog.Any("mac_key", m.macKey),
		slog.Bool("destroyed", m.IsDestroyed()),
	)
}

// views returns read-only views of both keys, failing if either is dead.
func (m *MasterSecret) views() (enc, mac []byte, err error) {
	if m.IsDestroyed() {
		return nil, nil, fmt.Errorf("%w: master secret", ErrAlreadyDestroyed)
	}
	if enc, err = m.encryptionKey.Bytes(); err != nil {
		return nil, nil, err
	}
	if mac, err = m.macKey.Bytes(); err != nil {
		return nil, nil, err
	}
	return enc, mac, nil
}
