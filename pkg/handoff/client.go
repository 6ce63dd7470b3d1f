// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// Client connects to a handoff server, performs the Noise_IK handshake as
// initiator and sends encrypted requests over the resulting session.
type Client struct {
	mu      sync.Mutex
	config  *ClientConfig
	conn    net.Conn
	session *noiseproto.Session
	logger  *slog.Logger
}

// NewClient creates a new handoff client with the given configuration.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if len(cfg.ServerStaticKey) != noiseproto.KeySize {
		return nil, fmt.Errorf("%w: server static key must be %d bytes, got %d",
			ErrHandshakeFailed, noiseproto.KeySize, len(cfg.ServerStaticKey))
	}
	if cfg.StaticKey.IsDestroyed() {
		return nil, fmt.Errorf("%w: client static key is required", ErrHandshakeFailed)
	}

	c := *cfg
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultWriteTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultReadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return &Client{
		config: &c,
		logger: c.Logger,
	}, nil
}

// Connect establishes a TCP connection to the server and performs the
// Noise_IK handshake. The context bounds both.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	session, err := c.performHandshake(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.session = session
	c.logger.Debug("handshake complete", "server", c.config.ServerAddr)
	return nil
}

// FetchMasterSecret requests the master secret and decodes it straight
// into locked memory. The response plaintext is wiped before returning.
func (c *Client) FetchMasterSecret(ctx context.Context) (*secret.MasterSecret, error) {
	plaintext, payload, err := c.roundTrip(ctx, MethodGetMasterSecret)
	if err != nil {
		return nil, err
	}
	defer secret.Wipe(plaintext)

	ms, err := secret.DecodeAndWipe(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return ms, nil
}

// Describe requests the non-secret description of the served secret.
func (c *Client) Describe(ctx context.Context) (*Description, error) {
	_, payload, err := c.roundTrip(ctx, MethodDescribe)
	if err != nil {
		return nil, err
	}

	var d Description
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("%w: parse description: %w", ErrInvalidResponse, err)
	}
	return &d, nil
}

// Close shuts down the client connection. It is safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.session.Close()
	c.conn = nil
	c.session = nil
	return err
}

// roundTrip sends one request and returns the full response plaintext and
// its payload, which aliases it.
func (c *Client) roundTrip(ctx context.Context, method string) ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.session == nil {
		return nil, nil, ErrNotConnected
	}

	reqData, err := json.Marshal(&Request{Method: method})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: marshal request: %w", ErrInvalidRequest, err)
	}

	ciphertext, err := c.session.Encrypt(reqData)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encrypt request: %w", ErrHandshakeFailed, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.OperationTimeout)
	}

	if err := WriteFrame(c.conn, ciphertext, deadline); err != nil {
		return nil, nil, fmt.Errorf("handoff: write request: %w", err)
	}

	respCiphertext, err := ReadFrame(c.conn, deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("handoff: read response: %w", err)
	}

	plaintext, err := c.session.Decrypt(respCiphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decrypt response: %w", ErrHandshakeFailed, err)
	}

	payload, err := parseResponse(plaintext)
	if err != nil {
		secret.Wipe(plaintext)
		return nil, nil, err
	}
	return plaintext, payload, nil
}

// performHandshake executes the 2-message Noise_IK handshake as initiator.
//
// IK pattern:
//   - Message 1 (client -> server): [e, es, s, ss]
//   - Message 2 (server -> client): [e, ee, se]
func (c *Client) performHandshake(ctx context.Context, conn net.Conn) (_ *noiseproto.Session, err error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		Pattern:        noise.HandshakeIK,
		IsInitiator:    true,
		LocalStaticKey: c.config.StaticKey,
		PeerStaticKey:  c.config.ServerStaticKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	defer func() {
		if err != nil {
			session.Close()
		}
	}()
	if err := session.InitHandshake(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.ConnectTimeout)
	}

	msg1, _, err := session.HandshakeMessage(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: generate msg1: %w", ErrHandshakeFailed, err)
	}

	if err := WriteFrame(conn, msg1, deadline); err != nil {
		return nil, fmt.Errorf("%w: send msg1: %w", ErrHandshakeFailed, err)
	}

	// An unauthorized client sees the server close the connection here.
	msg2, err := ReadFrame(conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: read msg2: %w", ErrHandshakeFailed, err)
	}

	_, complete, err := session.HandshakeMessage(msg2)
	if err != nil {
		return nil, fmt.Errorf("%w: process msg2: %w", ErrHandshakeFailed, err)
	}
	if !complete {
		return nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}

	return session, nil
}
