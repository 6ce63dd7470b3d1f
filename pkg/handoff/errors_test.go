// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors_Sentinel(t *testing.T) {
	sentinels := []error{
		ErrServerNotStarted,
		ErrServerAlreadyStarted,
		ErrMaxConnections,
		ErrInvalidConfig,
		ErrInvalidRequest,
		ErrInvalidResponse,
		ErrMethodNotFound,
		ErrProviderNotConfigured,
		ErrServerError,
		ErrNotConnected,
		ErrConnectionFailed,
		ErrTimeout,
		ErrFrameTooLarge,
		ErrHandshakeFailed,
		ErrUnauthorizedClient,
		ErrRateLimited,
	}

	seen := make(map[string]bool)
	for _, err := range sentinels {
		msg := err.Error()
		if !strings.HasPrefix(msg, "handoff: ") {
			t.Errorf("sentinel %q lacks the package prefix", msg)
		}
		if seen[msg] {
			t.Errorf("duplicate sentinel message %q", msg)
		}
		seen[msg] = true

		for _, other := range sentinels {
			if other != err && errors.Is(err, other) {
				t.Errorf("%q should not match %q", err, other)
			}
		}
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: read msg1: %w", ErrHandshakeFailed, ErrTimeout)
	if !errors.Is(wrapped, ErrHandshakeFailed) {
		t.Error("expected wrapped error to match ErrHandshakeFailed")
	}
	if !errors.Is(wrapped, ErrTimeout) {
		t.Error("expected wrapped error to match ErrTimeout")
	}
	if errors.Is(wrapped, ErrConnectionFailed) {
		t.Error("wrapped error should not match ErrConnectionFailed")
	}
}
