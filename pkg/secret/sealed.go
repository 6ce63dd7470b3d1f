// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Sealed is a MasterSecret encrypted inside a memguard Enclave. It is the
// in-process way to park a secret or hand it to another component: the
// plaintext only exists while Open is building a new MasterSecret.
type Sealed struct {
	enclave *memguard.Enclave
}

// Seal encrypts the encoded secret into an enclave. The receiver remains
// usable; destroy it separately if it is no longer needed.
func (m *MasterSecret) Seal() (*Sealed, error) {
	buf, err := m.EncodeLocked()
	if err != nil {
		return nil, err
	}
	// Seal destroys buf.
	enclave := buf.Seal()
	if enclave == nil {
		return nil, fmt.Errorf("%w: sealing failed", ErrAlreadyDestroyed)
	}
	return &Sealed{enclave: enclave}, nil
}

// Open decrypts the enclave and returns a new, independent MasterSecret.
// Open may be called any number of times.
func (s *Sealed) Open() (*MasterSecret, error) {
	if s == nil || s.enclave == nil {
		return nil, fmt.Errorf("%w: sealed secret", ErrAlreadyDestroyed)
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open enclave: %w", ErrMalformedTransferBuffer, err)
	}
	defer buf.Destroy()
	return Decode(buf.Bytes())
}

// MasterSecret implements handoff.SecretProvider.
func (s *Sealed) MasterSecret() (*MasterSecret, error) {
	return s.Open()
}

// Size returns the size of the sealed transfer buffer in bytes.
func (s *Sealed) Size() int {
	if s == nil || s.enclave == nil {
		return 0
	}
	return s.enclave.Size()
}

// Discard drops the enclave. The ciphertext is left to the garbage
// collector; memguard.Purge removes the key that protects it.
func (s *Sealed) Discard() {
	if s != nil {
		s.enclave = nil
	}
}
