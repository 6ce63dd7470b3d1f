// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package handoff moves an encoded master secret from one process to another
// over TCP inside a Noise_IK session. The client knows the server's static
// key in advance; the server learns the client's static key from the first
// handshake message and refuses clients that are not on its allowlist.
package handoff

import "errors"

// Sentinel errors for the handoff package.
var (
	// ErrServerNotStarted indicates an operation was attempted before the server was started.
	ErrServerNotStarted = errors.New("handoff: server not started")

	// ErrServerAlreadyStarted indicates Start was called on an already-running server.
	ErrServerAlreadyStarted = errors.New("handoff: server already started")

	// ErrMaxConnections indicates the server has reached its maximum concurrent connection limit.
	ErrMaxConnections = errors.New("handoff: max connections reached")

	// ErrInvalidConfig indicates a server or client configuration was rejected.
	ErrInvalidConfig = errors.New("handoff: invalid configuration")

	// ErrInvalidRequest indicates the client sent a malformed or unparseable request.
	ErrInvalidRequest = errors.New("handoff: invalid request")

	// ErrInvalidResponse indicates the server sent a malformed response.
	ErrInvalidResponse = errors.New("handoff: invalid response")

	// ErrMethodNotFound indicates the requested method is not registered in the handler dispatch map.
	ErrMethodNotFound = errors.New("handoff: method not found")

	// ErrProviderNotConfigured indicates the server has no secret provider.
	ErrProviderNotConfigured = errors.New("handoff: secret provider not configured")

	// ErrServerError carries an error message returned by the server.
	ErrServerError = errors.New("handoff: server error")

	// ErrNotConnected indicates a request was attempted without a session.
	ErrNotConnected = errors.New("handoff: not connected")

	// ErrConnectionFailed indicates a TCP connection could not be established.
	ErrConnectionFailed = errors.New("handoff: connection failed")

	// ErrTimeout indicates an I/O operation exceeded its deadline.
	ErrTimeout = errors.New("handoff: operation timeout")

	// ErrFrameTooLarge indicates a frame exceeds the maximum allowed size.
	ErrFrameTooLarge = errors.New("handoff: frame too large")

	// ErrHandshakeFailed indicates the Noise_IK handshake did not complete successfully.
	ErrHandshakeFailed = errors.New("handoff: handshake failed")

	// ErrUnauthorizedClient indicates the client's static key is not on the allowlist.
	ErrUnauthorizedClient = errors.New("handoff: client key not authorized")

	// ErrRateLimited indicates the client was rejected due to per-IP rate limiting.
	ErrRateLimited = errors.New("handoff: rate limited")
)
