// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package mastercipher encrypts and authenticates data with the two keys
// of a secret.MasterSecret: AES-CTR under the encryption key, then
// HMAC-SHA256 under the MAC key over everything that follows the tag.
//
// Ciphertext layout:
//
//	[HMAC-SHA256 32][version 1][compression 1][IV 16][AES-CTR body]
//
// Usage:
//
//	ms, _ := secret.Generate()
//	defer ms.Destroy()
//	c := mastercipher.New(ms, mastercipher.WithCompression(mastercipher.CompressionSnappy))
//	ct, err := c.EncryptToString([]byte("hello"))
//	...
//	pt, err := c.DecryptString(ct)
package mastercipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

const (
	// FormatVersion is the only ciphertext version this package writes.
	FormatVersion byte = 1

	// DefaultMaxPlaintextSize bounds decompressed output.
	DefaultMaxPlaintextSize int64 = 64 << 20

	tagSize    = sha256.Size
	headerSize = 2
	ivSize     = aes.BlockSize

	// Overhead is the number of bytes Encrypt adds to the body.
	Overhead = tagSize + headerSize + ivSize
)

// Cipher encrypts with a borrowed MasterSecret. It never copies key
// bytes out of locked memory; each call reads them through
// MasterSecret.Use. A Cipher is safe for concurrent use as long as the
// MasterSecret is not destroyed concurrently.
type Cipher struct {
	secret           *secret.MasterSecret
	compression      Compression
	maxPlaintextSize int64
	rand             io.Reader
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithCompression compresses plaintext before encryption. Decrypt reads
// the algorithm from the ciphertext header, so this only affects Encrypt.
func WithCompression(c Compression) Option {
	return func(k *Cipher) { k.compression = c }
}

// WithMaxPlaintextSize limits how many bytes Decrypt will decompress.
func WithMaxPlaintextSize(n int64) Option {
	return func(k *Cipher) {
		if n > 0 {
			k.maxPlaintextSize = n
		}
	}
}

// withRand replaces the IV source in tests.
func withRand(r io.Reader) Option {
	return func(k *Cipher) { k.rand = r }
}

// New returns a Cipher bound to ms. The caller keeps ownership of ms.
func New(ms *secret.MasterSecret, opts ...Option) *Cipher {
	c := &Cipher{
		secret:           ms,
		compression:      CompressionNone,
		maxPlaintextSize: DefaultMaxPlaintextSize,
		rand:             rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compression returns the algorithm Encrypt applies.
func (c *Cipher) Compression() Compression {
	return c.compression
}

// Encrypt compresses (optionally), encrypts and authenticates data.
func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPlaintext
	}
	body, err := compress(c.compression, data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, Overhead+len(body))
	out[tagSize] = FormatVersion
	out[tagSize+1] = byte(c.compression)
	iv := out[tagSize+headerSize : Overhead]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, fmt.Errorf("mastercipher: read iv: %w", err)
	}

	var sealErr error
	err = c.secret.Use(func(encKey, macKey []byte) error {
		block, err := aes.NewCipher(encKey)
		if err != nil {
			sealErr = fmt.Errorf("%w: %w", ErrDecryptionUnavailable, err)
			return nil
		}
		cipher.NewCTR(block, iv).XORKeyStream(out[Overhead:], body)

		mac := hmac.New(sha256.New, macKey)
		mac.Write(out[tagSize:])
		copy(out[:tagSize], mac.Sum(nil))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionUnavailable, err)
	}
	if sealErr != nil {
		return nil, sealErr
	}
	return out, nil
}

// Decrypt verifies the tag, then decrypts and decompresses data. Nothing
// is decrypted or decompressed unless the tag matches.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedCiphertext, len(data), Overhead)
	}

	var (
		body    []byte
		openErr error
	)
	err := c.secret.Use(func(encKey, macKey []byte) error {
		mac := hmac.New(sha256.New, macKey)
		mac.Write(data[tagSize:])
		if !hmac.Equal(data[:tagSize], mac.Sum(nil)) {
			openErr = ErrAuthenticationFailed
			return nil
		}
		if v := data[tagSize]; v != FormatVersion {
			openErr = fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
			return nil
		}
		block, err := aes.NewCipher(encKey)
		if err != nil {
			openErr = fmt.Errorf("%w: %w", ErrDecryptionUnavailable, err)
			return nil
		}
		iv := data[tagSize+headerSize : Overhead]
		body = make([]byte, len(data)-Overhead)
		cipher.NewCTR(block, iv).XORKeyStream(body, data[Overhead:])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionUnavailable, err)
	}
	if openErr != nil {
		return nil, openErr
	}

	alg := Compression(data[tagSize+1])
	if alg == CompressionNone {
		return body, nil
	}
	plaintext, err := decompress(alg, body, c.maxPlaintextSize)
	secret.Wipe(body)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// Send encrypts plaintext and writes the ciphertext to w.
func (c *Cipher) Send(plaintext []byte, w io.Writer) error {
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return err
	}
	_, err = w.Write(ciphertext)
	return err
}

// Recv reads r to EOF and decrypts what it read.
func (c *Cipher) Recv(r io.Reader) ([]byte, error) {
	limit := c.maxPlaintextSize + Overhead
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrPlaintextTooLarge
	}
	return c.Decrypt(data)
}

// EncryptToString encrypts data and returns it base64 raw-std encoded.
func (c *Cipher) EncryptToString(data []byte) (string, error) {
	ciphertext, err := c.Encrypt(data)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString decodes base64 raw-std input and decrypts it.
func (c *Cipher) DecryptString(s string) ([]byte, error) {
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCiphertext, err)
	}
	return c.Decrypt(data)
}

// IsUnavailable reports whether err means the master secret could not be
// used at all, as opposed to a bad ciphertext.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDecryptionUnavailable)
}
