// Package ws implements the uplink over a websocket: ws://host:port/path.
// Every exchange opens a new websocket, sends the frame as one message and
// reads one message back.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/websocket"

	"github.com/robotalks/telenode/pkg/transport"
)

func init() {
	transport.Register("ws", New)
	transport.Register("wss", New)
}

// Acquirer prepares the websocket configuration.
type Acquirer struct {
	URL    string
	Origin string
	NodeID string
}

// New creates an Acquirer.
func New(u *url.URL, opts transport.Options) (transport.Acquirer, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("websocket host not specified")
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return &Acquirer{
		URL:    u.String(),
		Origin: scheme + "://" + u.Host + "/",
		NodeID: opts.NodeID,
	}, nil
}

// Acquire implements transport.Acquirer.
func (a *Acquirer) Acquire(ctx context.Context) (transport.Network, error) {
	config, err := websocket.NewConfig(a.URL, a.Origin)
	if err != nil {
		return nil, err
	}
	if a.NodeID != "" {
		config.Header.Set("X-Node-ID", a.NodeID)
	}
	return &Network{Config: config}, nil
}

// Network dials websockets with a prepared configuration.
type Network struct {
	Config *websocket.Config
}

// Dial implements transport.Network.
func (n *Network) Dial(ctx context.Context, timeout time.Duration) (transport.Socket, error) {
	config := *n.Config
	config.Dialer = &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		config.Dialer.Deadline = deadline
	}
	conn, err := websocket.DialConfig(&config)
	if err != nil {
		return nil, err
	}
	return &Socket{Conn: conn, Timeout: timeout}, nil
}

// String implements transport.Network.
func (n *Network) String() string {
	return n.Config.Location.String()
}

// Close implements io.Closer.
func (n *Network) Close() error {
	return nil
}

// Socket is one websocket connection.
type Socket struct {
	Conn    *websocket.Conn
	Timeout time.Duration
}

// Send implements transport.Socket.
func (s *Socket) Send(p []byte) (int, error) {
	if s.Timeout > 0 {
		s.Conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	}
	if err := websocket.Message.Send(s.Conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Recv implements transport.Socket. A reply longer than p is truncated.
func (s *Socket) Recv(p []byte) (int, error) {
	if s.Timeout > 0 {
		s.Conn.SetReadDeadline(time.Now().Add(s.Timeout))
	}
	var msg []byte
	if err := websocket.Message.Receive(s.Conn, &msg); err != nil {
		return 0, err
	}
	return copy(p, msg), nil
}

// Close implements io.Closer.
func (s *Socket) Close() error {
	return s.Conn.Close()
}
