// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// Request methods.
const (
	// MethodGetMasterSecret returns the encoded transfer buffer.
	MethodGetMasterSecret = "get_master_secret"

	// MethodDescribe returns key sizes, algorithms and the fingerprint.
	MethodDescribe = "describe"
)

// Response status bytes. A response plaintext is the status byte followed
// by the payload; for statusError the payload is a UTF-8 message.
const (
	statusOK    byte = 0
	statusError byte = 1
)

// Request is the JSON request format.
type Request struct {
	// Method identifies the operation to perform.
	Method string `json:"method"`
}

// Description is the describe payload. It never contains key bytes.
type Description struct {
	EncryptionKeySize   int    `json:"encryption_key_size"`
	EncryptionAlgorithm string `json:"encryption_algorithm"`
	MACKeySize          int    `json:"mac_key_size"`
	MACAlgorithm        string `json:"mac_algorithm"`
	Fingerprint         string `json:"fingerprint"`
}

// handlerFunc returns the response payload for a request. Payloads may hold
// key material; the server wipes them once they are encrypted.
type handlerFunc func(req *Request) ([]byte, error)

// Handler dispatches requests by method name.
type Handler struct {
	secrets  SecretProvider
	handlers map[string]handlerFunc
	logger   *slog.Logger
}

// NewHandler creates a Handler serving secrets. secrets may be nil;
// requests then fail with ErrProviderNotConfigured.
func NewHandler(secrets SecretProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		secrets: secrets,
		logger:  logger,
	}

	h.handlers = map[string]handlerFunc{
		MethodGetMasterSecret: h.handleGetMasterSecret,
		MethodDescribe:        h.handleDescribe,
	}

	return h
}

// Handle dispatches the request to the handler registered for its Method.
func (h *Handler) Handle(req *Request) ([]byte, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	handler, ok := h.handlers[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, req.Method)
	}

	return handler(req)
}

// HandleRaw parses a JSON request plaintext and returns the response
// plaintext, status byte included. It never fails: errors become
// statusError responses.
func (h *Handler) HandleRaw(plaintext []byte) []byte {
	var req Request
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return errorResponse(fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	payload, err := h.Handle(&req)
	if err != nil {
		h.logger.Warn("request failed", "method", req.Method, "error", err)
		return errorResponse(err)
	}
	h.logger.Debug("request served", "method", req.Method, "bytes", len(payload))

	resp := make([]byte, 1+len(payload))
	resp[0] = statusOK
	copy(resp[1:], payload)
	secret.Wipe(payload)
	return resp
}

func (h *Handler) openSecret() (*secret.MasterSecret, error) {
	if h.secrets == nil {
		return nil, ErrProviderNotConfigured
	}
	ms, err := h.secrets.MasterSecret()
	if err != nil {
		return nil, fmt.Errorf("handoff: master secret unavailable: %w", err)
	}
	return ms, nil
}

func (h *Handler) handleGetMasterSecret(_ *Request) ([]byte, error) {
	ms, err := h.openSecret()
	if err != nil {
		return nil, err
	}
	defer ms.Destroy()

	return ms.Encode()
}

func (h *Handler) handleDescribe(_ *Request) ([]byte, error) {
	ms, err := h.openSecret()
	if err != nil {
		return nil, err
	}
	defer ms.Destroy()

	enc, err := ms.EncryptionKey()
	if err != nil {
		return nil, err
	}
	mac, err := ms.MACKey()
	if err != nil {
		return nil, err
	}
	fp, err := ms.Fingerprint()
	if err != nil {
		return nil, err
	}

	return json.Marshal(&Description{
		EncryptionKeySize:   enc.Size(),
		EncryptionAlgorithm: enc.Purpose().Algorithm(),
		MACKeySize:          mac.Size(),
		MACAlgorithm:        mac.Purpose().Algorithm(),
		Fingerprint:         fp,
	})
}

func errorResponse(err error) []byte {
	msg := err.Error()
	resp := make([]byte, 1+len(msg))
	resp[0] = statusError
	copy(resp[1:], msg)
	return resp
}

// parseResponse splits a response plaintext into its payload or the
// server's error.
func parseResponse(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	switch plaintext[0] {
	case statusOK:
		return plaintext[1:], nil
	case statusError:
		return nil, fmt.Errorf("%w: %s", ErrServerError, plaintext[1:])
	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrInvalidResponse, plaintext[0])
	}
}
