// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flynn/noise"
)

// Protocol constants.
const (
	// KeySize is the size of Curve25519 keys in bytes.
	KeySize = 32

	// MaxMessageSize is the maximum plaintext message size.
	// Noise protocol maximum (65535) minus the AEAD tag overhead (16).
	MaxMessageSize = 65535 - 16
)

// Pattern names for which the initiator must know the responder's static
// key before the first message.
var knownResponderPatterns = map[string]bool{
	noise.HandshakeNK.Name: true,
	noise.HandshakeIK.Name: true,
}

// SessionConfig configures a Noise protocol session.
type SessionConfig struct {
	// Pattern specifies the Noise handshake pattern to use.
	// Supported: noise.HandshakeIK, noise.HandshakeXX, noise.HandshakeNK
	Pattern noise.HandshakePattern

	// LocalStaticKey is the persistent local static key pair. The session
	// borrows it; the caller destroys it. If nil, an ephemeral key is
	// generated and destroyed by Close.
	LocalStaticKey *StaticKey

	// PeerStaticKey is the remote party's static public key.
	// For IK and NK initiators: REQUIRED (the responder's key is known).
	// Otherwise optional; when set, the key learned during the handshake
	// must match it.
	PeerStaticKey []byte

	// AuthorizePeer, if set, is called with the peer's static public key
	// as soon as the handshake reveals it and before this side sends any
	// further message. A non-nil error aborts the handshake.
	AuthorizePeer func(peerStatic []byte) error

	// IsInitiator indicates whether this side initiates the handshake.
	IsInitiator bool

	// Prologue is optional data that must match on both sides for the
	// handshake to succeed. Provides channel binding context.
	Prologue []byte
}

// Session manages an encrypted Noise protocol session.
type Session struct {
	mu             sync.Mutex
	localStatic    *StaticKey
	ownsLocal      bool
	peerStatic     []byte
	peerVerified   bool
	authorize      func([]byte) error
	prologue       []byte
	handshakeState *noise.HandshakeState
	sendCipher     *noise.CipherState
	recvCipher     *noise.CipherState
	isInitiator    bool
	pattern        noise.HandshakePattern
	handshakeDone  atomic.Bool
}

// NewSession creates a new Noise protocol session from the provided configuration.
// If no LocalStaticKey is provided, a new Curve25519 key pair is generated.
func NewSession(cfg *SessionConfig) (*Session, error) {
	localStatic := cfg.LocalStaticKey
	owns := false
	if localStatic == nil {
		var err error
		localStatic, err = GenerateStaticKey()
		if err != nil {
			return nil, fmt.Errorf("%w: key generation: %w", ErrHandshakeFailed, err)
		}
		owns = true
	}

	return &Session{
		localStatic: localStatic,
		ownsLocal:   owns,
		peerStatic:  bytes.Clone(cfg.PeerStaticKey),
		authorize:   cfg.AuthorizePeer,
		prologue:    cfg.Prologue,
		isInitiator: cfg.IsInitiator,
		pattern:     cfg.Pattern,
	}, nil
}

// LocalStaticPublicKey returns the local static public key.
func (s *Session) LocalStaticPublicKey() []byte {
	return s.localStatic.Public()
}

// PeerStaticPublicKey returns the peer's static public key.
// This is populated once the handshake reveals it (IK responder after the
// first message, XX after the second or third), or from configuration.
func (s *Session) PeerStaticPublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerStatic
}

// IsHandshakeComplete returns true if the handshake has completed
// and the session is ready for encrypted communication.
func (s *Session) IsHandshakeComplete() bool {
	return s.handshakeDone.Load()
}

// SetPrologue updates the prologue for the session. The prologue must
// match on both sides for the handshake to succeed. Must be called
// before InitHandshake.
func (s *Session) SetPrologue(prologue []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prologue = prologue
}

// InitHandshake initializes the Noise handshake state machine.
func (s *Session) InitHandshake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staticKeypair, err := s.localStatic.DHKey()
	if err != nil {
		return fmt.Errorf("%w: local static key: %w", ErrHandshakeFailed, err)
	}

	cipherSuite := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

	config := noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       s.pattern,
		Initiator:     s.isInitiator,
		Prologue:      s.prologue,
		StaticKeypair: staticKeypair,
	}

	// For IK and NK the responder's static key is a pre-message.
	if knownResponderPatterns[s.pattern.Name] && s.isInitiator {
		if len(s.peerStatic) != KeySize {
			return fmt.Errorf("%w: %s initiator requires a %d-byte peer static key",
				ErrHandshakeFailed, s.pattern.Name, KeySize)
		}
		config.PeerStatic = s.peerStatic
	}

	hs, err := noise.NewHandshakeState(config)
	if err != nil {
		return fmt.Errorf("%w: init: %w", ErrHandshakeFailed, err)
	}

	s.handshakeState = hs
	return nil
}

// HandshakeMessage processes a handshake message exchange.
//
// For the initiator: call with nil incoming to produce the first message,
// then call with each response from the responder.
//
// For the responder: call with each received message from the initiator.
//
// Returns the outgoing message (may be nil on final read), a boolean
// indicating whether the handshake is complete, and any error.
//
// IK and NK take 2 messages; XX takes 3.
func (s *Session) HandshakeMessage(incoming []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handshakeState == nil {
		return nil, false, ErrHandshakeFailed
	}

	var outgoing []byte
	var err error

	if s.isInitiator {
		if incoming == nil {
			// First message from initiator (e for XX, e+es for NK, e+es+s+ss for IK)
			outgoing, _, _, err = s.handshakeState.WriteMessage(nil, nil)
			if err != nil {
				return nil, false, fmt.Errorf("%w: write msg1: %w", ErrHandshakeFailed, err)
			}
			return outgoing, false, nil
		}

		// Process the response from responder
		var c1, c2 *noise.CipherState
		_, c1, c2, err = s.handshakeState.ReadMessage(nil, incoming)
		if err != nil {
			return nil, false, fmt.Errorf("%w: read response (size=%d): %w", ErrHandshakeFailed, len(incoming), err)
		}
		if err := s.verifyPeer(); err != nil {
			return nil, false, err
		}

		// If ReadMessage returned ciphers, the handshake completed on read
		// (IK and NK, where the initiator's final action is reading msg2).
		if c1 != nil && c2 != nil {
			s.sendCipher = c1
			s.recvCipher = c2
		} else {
			// More messages remain (XX msg3: s, se)
			outgoing, s.sendCipher, s.recvCipher, err = s.handshakeState.WriteMessage(nil, nil)
			if err != nil {
				return nil, false, fmt.Errorf("%w: write final: %w", ErrHandshakeFailed, err)
			}
		}
	} else {
		// Responder
		if incoming == nil {
			return nil, false, fmt.Errorf("%w: responder requires incoming message", ErrInvalidMessage)
		}

		var c1, c2 *noise.CipherState
		_, c1, c2, err = s.handshakeState.ReadMessage(nil, incoming)
		if err != nil {
			return nil, false, fmt.Errorf("%w: read: %w", ErrHandshakeFailed, err)
		}
		if err := s.verifyPeer(); err != nil {
			return nil, false, err
		}

		if c1 != nil && c2 != nil {
			// Final read completed (XX msg3 received)
			s.recvCipher = c1
			s.sendCipher = c2
		} else {
			// Need to write a response
			outgoing, s.recvCipher, s.sendCipher, err = s.handshakeState.WriteMessage(nil, nil)
			if err != nil {
				return nil, false, fmt.Errorf("%w: write response: %w", ErrHandshakeFailed, err)
			}

			// Check if writing response completed the handshake
			if s.recvCipher == nil || s.sendCipher == nil {
				return outgoing, false, nil
			}
		}
	}

	// Check if handshake is complete
	if s.sendCipher != nil && s.recvCipher != nil {
		s.handshakeDone.Store(true)
		s.handshakeState = nil // Clear handshake state for forward secrecy
		return outgoing, true, nil
	}

	return outgoing, false, nil
}

// verifyPeer checks the peer static key once the handshake state knows
// it: first against the configured expectation, then with AuthorizePeer.
// Caller holds s.mu.
func (s *Session) verifyPeer() error {
	if s.peerVerified {
		return nil
	}
	peerStatic := s.handshakeState.PeerStatic()
	if len(peerStatic) == 0 {
		return nil
	}
	if len(s.peerStatic) > 0 && !bytes.Equal(peerStatic, s.peerStatic) {
		return ErrStaticKeyMismatch
	}
	if s.authorize != nil {
		if err := s.authorize(bytes.Clone(peerStatic)); err != nil {
			return fmt.Errorf("%w: %w", ErrPeerNotAuthorized, err)
		}
	}
	s.peerStatic = bytes.Clone(peerStatic)
	s.peerVerified = true
	return nil
}

// Encrypt encrypts a plaintext message using the established session keys.
// Returns ErrSessionNotReady if called before handshake completion.
// Returns ErrEncryptionFailed if the plaintext exceeds MaxMessageSize.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.handshakeDone.Load() {
		return nil, ErrSessionNotReady
	}

	if len(plaintext) > MaxMessageSize {
		return nil, fmt.Errorf("%w: message size %d exceeds maximum %d",
			ErrEncryptionFailed, len(plaintext), MaxMessageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendCipher == nil {
		return nil, ErrEncryptionFailed
	}

	ciphertext, err := s.sendCipher.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	return ciphertext, nil
}

// Decrypt decrypts a ciphertext message using the established session keys.
// Returns ErrSessionNotReady if called before handshake completion.
// Returns ErrDecryptionFailed if the ciphertext is invalid or tampered.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.handshakeDone.Load() {
		return nil, ErrSessionNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recvCipher == nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := s.recvCipher.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// Close drops the transport ciphers and destroys the local static key if
// the session generated it. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeState = nil
	s.sendCipher = nil
	s.recvCipher = nil
	s.handshakeDone.Store(false)
	if s.ownsLocal {
		s.localStatic.Destroy()
	}
}
