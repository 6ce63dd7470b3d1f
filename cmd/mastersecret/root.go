// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeremyhahn/go-mastersecret/pkg/secret"
)

// Encodings accepted by --format.
const (
	formatRaw    = "raw"
	formatHex    = "hex"
	formatBase64 = "base64"
)

var (
	quiet      bool
	debug      bool
	format     string
	outputFile string
	logFormat  string
)

// logLevel controls the global slog level at runtime.
var logLevel = new(slog.LevelVar)

// exitFunc is the function called to exit the program.
// This can be overridden in tests to capture exit calls.
var exitFunc = os.Exit

// stdin is read when an input path is "-". Tests replace it.
var stdin io.Reader = os.Stdin

var rootCmd = &cobra.Command{
	Use:   "mastersecret",
	Short: "Master secret management tool",
	Long: `mastersecret generates, inspects and moves the master secret: the
AES encryption key and HMAC-SHA256 key pair that protect a node's data.

Secrets are kept in locked memory and wiped after use. On disk and on the
wire a secret is a transfer buffer:

  [u32 len][encryption key][u32 len][MAC key]   (big-endian lengths)

written as raw bytes, hex or base64 depending on --format.

Commands:
  generate - create a new master secret
  inspect  - print key sizes and fingerprint of a secret file
  keygen   - create a Curve25519 static key for the handoff protocol
  pubkey   - print the public half of a static key file
  serve    - serve a secret to authorized clients over Noise_IK
  fetch    - fetch a secret from a handoff server
  encrypt  - encrypt data with a secret
  decrypt  - decrypt data with a secret`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&format, "format", formatHex, "secret file encoding (raw|hex|base64)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(pubkeyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
}

// initLogging configures the global slog logger based on CLI flags.
//
//	--debug: LevelDebug with source location
//	default: LevelInfo
//	--quiet: LevelError (only errors shown)
//
// --debug takes precedence over --quiet.
// --log-format selects the handler: "text" (default) or "json".
func initLogging() {
	switch {
	case debug:
		logLevel.Set(slog.LevelDebug)
	case quiet:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	}

	handlers := map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
		"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
		"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	}

	factory, ok := handlers[logFormat]
	if !ok {
		factory = handlers["text"]
	}

	handler := factory(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// writeOutput writes data to the configured output file or stdout.
// It respects the --output flag; when empty, writes to stdout.
func writeOutput(data []byte) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("%w: %w", ErrFileOperation, err)
		}
		slog.Info("written to file", "path", outputFile, "bytes", len(data))
		return nil
	}
	_, err := os.Stdout.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	return nil
}

// readInput reads a file, or stdin when path is "-" or empty.
func readInput(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, displayPath(path), err)
	}
	return data, nil
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

// encodeSecret renders a transfer buffer in the --format encoding. The
// result is a new slice; the caller wipes both.
func encodeSecret(buf []byte) ([]byte, error) {
	switch format {
	case formatRaw:
		return append([]byte(nil), buf...), nil
	case formatHex:
		out := make([]byte, hex.EncodedLen(len(buf))+1)
		hex.Encode(out, buf)
		out[len(out)-1] = '\n'
		return out, nil
	case formatBase64:
		out := make([]byte, base64.StdEncoding.EncodedLen(len(buf))+1)
		base64.StdEncoding.Encode(out, buf)
		out[len(out)-1] = '\n'
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}
}

// decodeSecret reverses encodeSecret. The result is a new slice; data is
// left for the caller to wipe.
func decodeSecret(data []byte) ([]byte, error) {
	var (
		out []byte
		n   int
		err error
	)
	switch format {
	case formatRaw:
		return append([]byte(nil), data...), nil
	case formatHex:
		trimmed := bytes.TrimSpace(data)
		out = make([]byte, hex.DecodedLen(len(trimmed)))
		n, err = hex.Decode(out, trimmed)
	case formatBase64:
		trimmed := bytes.TrimSpace(data)
		out = make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
		n, err = base64.StdEncoding.Decode(out, trimmed)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}
	if err != nil {
		secret.Wipe(out)
		return nil, fmt.Errorf("%w: decoding %s secret: %w", ErrSecretOperation, format, err)
	}
	return out[:n], nil
}

// loadSecret reads a secret file in the --format encoding into locked
// memory. Every intermediate buffer is wiped.
func loadSecret(path string) (*secret.MasterSecret, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	defer secret.Wipe(data)

	buf, err := decodeSecret(data)
	if err != nil {
		return nil, err
	}

	ms, err := secret.DecodeAndWipe(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSecretOperation, displayPath(path), err)
	}
	return ms, nil
}

// stdoutIsTerminal reports whether output without --output lands on a
// terminal. Tests replace it.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// writeSecret writes ms to the output in the --format encoding. Raw bytes
// are never written to a terminal.
func writeSecret(ms *secret.MasterSecret) error {
	if outputFile == "" && stdoutIsTerminal() {
		if format == formatRaw {
			return fmt.Errorf("%w: refusing to write a raw secret to a terminal, use --output or --format hex", ErrInvalidInput)
		}
		slog.Warn("writing master secret to terminal")
	}

	locked, err := ms.EncodeLocked()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSecretOperation, err)
	}
	defer locked.Destroy()

	out, err := encodeSecret(locked.Bytes())
	if err != nil {
		return err
	}
	defer secret.Wipe(out)

	return writeOutput(out)
}
