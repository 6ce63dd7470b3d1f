// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import "errors"

// Exit codes for the CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitOperationFailed indicates a secret, cipher or transfer operation failed.
	ExitOperationFailed = 1

	// ExitConfigError indicates a configuration or input validation error.
	ExitConfigError = 2
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required input parameters are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetchFailed is returned when fetching a secret from a handoff server fails.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSecretOperation is returned when generating, decoding or encoding a master secret fails.
	ErrSecretOperation = errors.New("secret operation failed")

	// ErrCipherOperation is returned when encrypting or decrypting data fails.
	ErrCipherOperation = errors.New("cipher operation failed")

	// ErrKeyOperation is returned when a key generation or decoding operation fails.
	ErrKeyOperation = errors.New("key operation failed")

	// ErrFileOperation is returned when a file read or write operation fails.
	ErrFileOperation = errors.New("file operation failed")
)

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrSecretFileRequired),
		errors.Is(err, ErrNoAuthorizedKeys):
		return ExitConfigError
	default:
		return ExitOperationFailed
	}
}
