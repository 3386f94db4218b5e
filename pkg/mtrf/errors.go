// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrame is wrapped by every FrameError.
	ErrInvalidFrame = errors.New("mtrf: invalid frame")

	// ErrAddressing is returned when a command has neither a device id nor a channel.
	ErrAddressing = errors.New("mtrf: device id or channel required")

	// ErrClosed is returned by operations on a released adapter.
	ErrClosed = errors.New("mtrf: adapter closed")

	// ErrConnectionLost is returned once the reader stopped on an I/O error.
	ErrConnectionLost = errors.New("mtrf: connection lost")

	// ErrWriteFailed is returned when a frame could not be written to the port.
	ErrWriteFailed = errors.New("mtrf: write failed")

	// ErrInvalidArgument is returned for out-of-range operation parameters.
	ErrInvalidArgument = errors.New("mtrf: invalid argument")

	// ErrUnsupported is returned when a device kind lacks the requested capability.
	ErrUnsupported = errors.New("mtrf: operation not supported by device kind")
)

// FrameError describes why a received frame was rejected.
type FrameError struct {
	Reason string
	Frame  []byte
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFrame, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidFrame.
func (e *FrameError) Unwrap() error {
	return ErrInvalidFrame
}

func frameErrorf(frame []byte, format string, args ...any) *FrameError {
	return &FrameError{
		Reason: fmt.Sprintf(format, args...),
		Frame:  append([]byte(nil), frame...),
	}
}
