// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/jeremyhahn/go-mastersecret/pkg/noiseproto"
	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// Server accepts Noise_IK connections from authorized clients and answers
// their requests with the configured master secret.
//
// Per connection:
//   - Message 1 (client -> server): [e, es, s, ss]; the client key is
//     checked against AuthorizedKeys before anything is sent back
//   - Message 2 (server -> client): [e, ee, se]
//   - then any number of encrypted request/response frames until the
//     client disconnects or a read times out
type Server struct {
	mu          sync.Mutex
	config      *ServerConfig
	handler     *Handler
	authorized  map[string]struct{}
	listener    net.Listener
	rateLimiter *rateLimiter
	sem         chan struct{}
	conns       map[net.Conn]struct{}
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// NewServer validates cfg, fills in defaults and returns a stopped server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if cfg.StaticKey.IsDestroyed() {
		return nil, fmt.Errorf("%w: static key is required", ErrHandshakeFailed)
	}
	if len(cfg.AuthorizedKeys) == 0 {
		return nil, fmt.Errorf("%w: at least one authorized client key is required", ErrInvalidConfig)
	}
	if cfg.MaxConnections > MaxMaxConnections {
		return nil, fmt.Errorf("%w: %d exceeds upper bound %d",
			ErrMaxConnections, cfg.MaxConnections, MaxMaxConnections)
	}

	authorized := make(map[string]struct{}, len(cfg.AuthorizedKeys))
	for i, k := range cfg.AuthorizedKeys {
		if len(k) != noiseproto.KeySize {
			return nil, fmt.Errorf("%w: authorized key %d is %d bytes, want %d",
				ErrInvalidConfig, i, len(k), noiseproto.KeySize)
		}
		authorized[string(k)] = struct{}{}
	}

	c := *cfg
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return &Server{
		config:     &c,
		handler:    NewHandler(c.Secrets, c.Logger),
		authorized: authorized,
		logger:     c.Logger,
	}, nil
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrConnectionFailed, s.config.ListenAddr, err)
	}

	s.listener = ln
	s.rateLimiter = newRateLimiter(s.config.RateLimit, s.config.RateBurst,
		rateLimiterStaleAge, rateLimiterCleanupInterval)
	s.sem = make(chan struct{}, s.config.MaxConnections)
	s.conns = make(map[net.Conn]struct{})

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("handoff server listening",
		"addr", ln.Addr().String(),
		"server_key", s.config.StaticKey.PublicHex(),
		"authorized_clients", len(s.authorized))
	return nil
}

// Stop closes the listener and waits for in-flight connections to finish.
// When ctx expires first, the remaining connections are closed forcibly
// and Stop returns nil.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	s.listener = nil
	s.mu.Unlock()

	ln.Close()
	s.rateLimiter.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached, closing connections", "error", ctx.Err())
		s.closeConns()
		<-done
	}

	s.logger.Info("handoff server stopped")
	return nil
}

// Addr returns the bound address, or nil if the server is not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.logger.Warn("rejecting connection", "remote", conn.RemoteAddr().String(), "error", ErrMaxConnections)
			conn.Close()
			continue
		}

		if !s.rateLimiter.Allow(conn.RemoteAddr().String()) {
			s.logger.Warn("rejecting connection", "remote", conn.RemoteAddr().String(), "error", ErrRateLimited)
			conn.Close()
			<-s.sem
			continue
		}

		s.trackConn(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer s.trackConn(conn, false)
			defer conn.Close()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// handleConnection runs the handshake and then serves requests until the
// client goes away.
func (s *Server) handleConnection(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log := s.logger.With("remote", remote)

	session, err := s.handshake(conn)
	if err != nil {
		log.Warn("handshake rejected", "error", err)
		return
	}
	defer session.Close()
	log.Debug("handshake complete", "client_key", fmt.Sprintf("%x", session.PeerStaticPublicKey()))

	for {
		frame, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("client disconnected")
			} else {
				log.Debug("read request failed", "error", err)
			}
			return
		}

		reqPlain, err := session.Decrypt(frame)
		if err != nil {
			log.Warn("decrypt request failed", "error", err)
			return
		}

		var respPlain []byte
		if s.rateLimiter.Allow(remote) {
			respPlain = s.handler.HandleRaw(reqPlain)
		} else {
			respPlain = errorResponse(ErrRateLimited)
		}
		secret.Wipe(reqPlain)

		ciphertext, err := session.Encrypt(respPlain)
		secret.Wipe(respPlain)
		if err != nil {
			log.Warn("encrypt response failed", "error", err)
			return
		}

		if err := WriteFrame(conn, ciphertext, time.Now().Add(s.config.WriteTimeout)); err != nil {
			log.Debug("write response failed", "error", err)
			return
		}
	}
}

// handshake performs the responder side of Noise_IK.
func (s *Server) handshake(conn net.Conn) (_ *noiseproto.Session, err error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		Pattern:        noise.HandshakeIK,
		LocalStaticKey: s.config.StaticKey,
		AuthorizePeer:  s.authorizeClient,
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

	deadline := time.Now().Add(s.config.ReadTimeout)

	msg1, err := ReadFrame(conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: read msg1: %w", ErrHandshakeFailed, err)
	}

	msg2, complete, err := session.HandshakeMessage(msg1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if !complete {
		return nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}

	if err := WriteFrame(conn, msg2, time.Now().Add(s.config.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("%w: send msg2: %w", ErrHandshakeFailed, err)
	}

	return session, nil
}

func (s *Server) authorizeClient(peerStatic []byte) error {
	if _, ok := s.authorized[string(peerStatic)]; !ok {
		return fmt.Errorf("%w: %x", ErrUnauthorizedClient, peerStatic)
	}
	return nil
}
