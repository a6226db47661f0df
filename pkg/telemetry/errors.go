package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrSkipped indicates the link wasn't connected and nothing was attempted.
	ErrSkipped = errors.New("link not connected, transaction skipped")
	// ErrNoProgress indicates a socket accepted zero bytes without an error.
	ErrNoProgress = errors.New("send made no progress")
)

// ConnectError wraps a failed dial. The link is dropped.
type ConnectError struct {
	Err error
}

// Error implements error.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: %v", e.Err)
}

// Unwrap returns the cause.
func (e *ConnectError) Unwrap() error { return e.Err }

// PayloadError wraps a failure producing the frame (e.g. a bus error).
type PayloadError struct {
	Err error
}

// Error implements error.
func (e *PayloadError) Error() string {
	return fmt.Sprintf("payload: %v", e.Err)
}

// Unwrap returns the cause.
func (e *PayloadError) Unwrap() error { return e.Err }

// SendError wraps a failed submission after Sent bytes were accepted.
type SendError struct {
	Sent int
	Err  error
}

// Error implements error.
func (e *SendError) Error() string {
	return fmt.Sprintf("send (after %d bytes): %v", e.Sent, e.Err)
}

// Unwrap returns the cause.
func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError wraps a failed reply read.
type ReceiveError struct {
	Err error
}

// Error implements error.
func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive: %v", e.Err)
}

// Unwrap returns the cause.
func (e *ReceiveError) Unwrap() error { return e.Err }
