// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// FrameWriter is the part of net.Conn that WriteFrame needs.
type FrameWriter interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
}

// FrameReader is the part of net.Conn that ReadFrame needs.
type FrameReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// WriteFrame writes a 2-byte big-endian length-prefixed frame. The header
// and payload go out in a single Write. The deadline is applied before
// writing begins. Returns ErrFrameTooLarge if data exceeds MaxFrameSize.
func WriteFrame(w FrameWriter, data []byte, deadline time.Time) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: size %d exceeds maximum %d",
			ErrFrameTooLarge, len(data), MaxFrameSize)
	}

	if err := w.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrTimeout, err)
	}

	frame := make([]byte, FrameHeaderSize+len(data))
	binary.BigEndian.PutUint16(frame, uint16(len(data)))
	copy(frame[FrameHeaderSize:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrConnectionFailed, err)
	}

	return nil
}

// ReadFrame reads a 2-byte big-endian length-prefixed frame. The deadline
// is applied before reading begins. A zero-length frame yields an empty,
// non-nil slice.
func ReadFrame(r FrameReader, deadline time.Time) ([]byte, error) {
	if err := r.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set read deadline: %w", ErrTimeout, err)
	}

	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrConnectionFailed, err)
	}

	length := binary.BigEndian.Uint16(header)
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", ErrConnectionFailed, err)
	}

	return payload, nil
}
