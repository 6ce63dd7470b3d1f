// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flynn/noise"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
	"golang.org/x/crypto/curve25519"
)

// StaticKey is a Curve25519 static identity key. The private half lives in
// a locked secret.KeyHandle; the public half is an ordinary slice.
type StaticKey struct {
	private *secret.KeyHandle
	public  []byte
}

// GenerateStaticKey generates a new Curve25519 static key pair suitable for
// use as a Noise protocol static identity key.
func GenerateStaticKey() (*StaticKey, error) {
	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	return newStaticKey(kp.Private, kp.Public)
}

// LoadStaticKey creates a StaticKey from raw private key bytes by deriving
// the corresponding Curve25519 public key via scalar base multiplication.
// privateKey is moved into locked memory and wiped, on failure too.
func LoadStaticKey(privateKey []byte) (*StaticKey, error) {
	if len(privateKey) != KeySize {
		secret.Wipe(privateKey)
		return nil, ErrInvalidKeySize
	}

	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		secret.Wipe(privateKey)
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeySize, err)
	}

	return newStaticKey(privateKey, pub)
}

func newStaticKey(private, public []byte) (*StaticKey, error) {
	h, err := secret.NewKeyHandle(private, secret.PurposeKeyAgreement)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeySize, err)
	}
	return &StaticKey{private: h, public: bytes.Clone(public)}, nil
}

// EncodeStaticKey encodes a static key's private component to a hex string
// for persistent storage. The returned string is ordinary heap memory.
func EncodeStaticKey(key *StaticKey) (string, error) {
	if key.IsDestroyed() {
		return "", fmt.Errorf("%w: static key", secret.ErrAlreadyDestroyed)
	}
	var encoded string
	err := key.private.Use(func(priv []byte) error {
		encoded = hex.EncodeToString(priv)
		return nil
	})
	return encoded, err
}

// DecodeStaticKey decodes a hex-encoded static key string and derives the
// full key pair including the public component.
func DecodeStaticKey(encoded string) (*StaticKey, error) {
	privateKey, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	return LoadStaticKey(privateKey)
}

// ParsePublicKey decodes a hex-encoded 32-byte Curve25519 public key.
func ParsePublicKey(encoded string) ([]byte, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	if len(pub) != KeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeySize, KeySize, len(pub))
	}
	return pub, nil
}

// Public returns a copy of the public key. It stays available after
// Destroy.
func (k *StaticKey) Public() []byte {
	if k == nil {
		return nil
	}
	return bytes.Clone(k.public)
}

// PublicHex returns the public key hex encoded.
func (k *StaticKey) PublicHex() string {
	return hex.EncodeToString(k.Public())
}

// DHKey returns the key pair in the form flynn/noise expects. Private
// aliases locked memory and is only valid until Destroy.
func (k *StaticKey) DHKey() (noise.DHKey, error) {
	if k.IsDestroyed() {
		return noise.DHKey{}, fmt.Errorf("%w: static key", secret.ErrAlreadyDestroyed)
	}
	priv, err := k.private.Bytes()
	if err != nil {
		return noise.DHKey{}, err
	}
	return noise.DHKey{Private: priv, Public: k.Public()}, nil
}

// Destroy wipes and releases the private key. It is idempotent.
func (k *StaticKey) Destroy() {
	if k != nil {
		k.private.Destroy()
	}
}

// IsDestroyed reports whether the private key has been released.
func (k *StaticKey) IsDestroyed() bool {
	return k == nil || k.private.IsDestroyed()
}

// String reports the public key only.
func (k *StaticKey) String() string {
	if k == nil {
		return "StaticKey(nil)"
	}
	return fmt.Sprintf("StaticKey(%s)", k.PublicHex())
}

// LogValue implements slog.LogValuer.
func (k *StaticKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("public", k.PublicHex()),
		slog.Bool("destroyed", k.IsDestroyed()),
	)
}
