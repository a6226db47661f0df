// Package transport defines the uplink abstractions used by a node.
//
// An Acquirer brings up the uplink (joins the network, opens the radio)
// and returns a Network. A Network dials short lived Sockets, one per
// telemetry transaction, towards the single fixed destination.
package transport

import (
	"context"
	"io"
	"time"
)

// Socket is one connection to the destination.
type Socket interface {
	// Send submits p and returns how many bytes were accepted, which
	// may be fewer than len(p).
	Send(p []byte) (int, error)
	// Recv performs a single bounded read.
	Recv(p []byte) (int, error)

	io.Closer
}

// Network is an acquired uplink handle.
type Network interface {
	// Dial opens a Socket, giving up after timeout.
	Dial(ctx context.Context, timeout time.Duration) (Socket, error)
	// String describes the destination.
	String() string

	io.Closer
}

// Acquirer acquires a Network. A nil Network without error is treated
// as a failed acquisition.
type Acquirer interface {
	Acquire(ctx context.Context) (Network, error)
}

// AcquireFunc is the func form of Acquirer.
type AcquireFunc func(ctx context.Context) (Network, error)

// Acquire implements Acquirer.
func (f AcquireFunc) Acquire(ctx context.Context) (Network, error) {
	return f(ctx)
}
