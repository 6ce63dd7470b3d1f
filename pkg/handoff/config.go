// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// Default configuration values for the handoff server and client.
const (
	// DefaultListenAddr is the default TCP address the server binds to.
	DefaultListenAddr = "127.0.0.1:8446"

	// DefaultMaxConnections is the default maximum number of concurrent connections.
	DefaultMaxConnections = 16

	// DefaultReadTimeout is the default deadline for read operations.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout is the default deadline for write operations.
	DefaultWriteTimeout = 10 * time.Second

	// MaxFrameSize is the maximum payload size for a single length-prefixed frame.
	// This matches the Noise protocol maximum message size (65535 bytes).
	MaxFrameSize = 65535

	// FrameHeaderSize is the number of bytes used for the big-endian length prefix.
	FrameHeaderSize = 2

	// DefaultRateLimit is the default token refill rate (requests per second per IP).
	DefaultRateLimit = 2.0

	// DefaultRateBurst is the default maximum burst size for the rate limiter.
	DefaultRateBurst = 5

	// MaxMaxConnections is the upper bound for the MaxConnections configuration value.
	MaxMaxConnections = 1024

	rateLimiterStaleAge        = 10 * time.Minute
	rateLimiterCleanupInterval = time.Minute
)

// SecretProvider hands the server a fresh MasterSecret for each request.
// The server destroys what it receives. *secret.Sealed satisfies it.
type SecretProvider interface {
	MasterSecret() (*secret.MasterSecret, error)
}

// ServerConfig configures the Noise_IK handoff server.
type ServerConfig struct {
	// ListenAddr is the TCP address to bind the listener to.
	ListenAddr string

	// StaticKey is the server's Curve25519 static key pair. Clients must know
	// the public component to start the IK handshake. The server borrows
	// the key; the caller destroys it after Stop.
	StaticKey *noiseproto.StaticKey

	// AuthorizedKeys lists the 32-byte static public keys of clients that
	// may connect. At least one is required.
	AuthorizedKeys [][]byte

	// Secrets provides the master secret served by get_master_secret.
	Secrets SecretProvider

	// MaxConnections limits the number of simultaneous client connections.
	// Zero or negative values are replaced with DefaultMaxConnections.
	MaxConnections int

	// ReadTimeout is the deadline for reading a complete frame from a client.
	// Zero value is replaced with DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout is the deadline for writing a complete frame to a client.
	// Zero value is replaced with DefaultWriteTimeout.
	WriteTimeout time.Duration

	// RateLimit is the per-IP token refill rate in requests per second.
	// Zero value is replaced with DefaultRateLimit.
	RateLimit float64

	// RateBurst is the maximum number of requests that can be made in a
	// burst before rate limiting kicks in. Zero value is replaced with
	// DefaultRateBurst.
	RateBurst int

	// Logger is the structured logger for the server. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// ClientConfig configures the Noise_IK handoff client.
type ClientConfig struct {
	// ServerAddr is the TCP address of the handoff server.
	ServerAddr string

	// ServerStaticKey is the server's 32-byte Curve25519 static public key.
	ServerStaticKey []byte

	// StaticKey is the client's identity. Its public half must be in the
	// server's AuthorizedKeys. The client borrows the key.
	StaticKey *noiseproto.StaticKey

	// ConnectTimeout is the deadline for establishing the TCP connection
	// and completing the handshake. Zero value is replaced with
	// DefaultWriteTimeout.
	ConnectTimeout time.Duration

	// OperationTimeout is the deadline for a complete request/response cycle
	// after the handshake is established. Zero value is replaced with
	// DefaultReadTimeout.
	OperationTimeout time.Duration

	// Logger is the structured logger for the client. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}
