// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"

	"github.com/awnumar/memguard"
)

func main() {
	// Wipe locked memory on SIGINT/SIGTERM before exiting.
	memguard.CatchInterrupt()

	code := ExitSuccess
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		code = exitCode(err)
	}

	memguard.Purge()
	exitFunc(code)
}
