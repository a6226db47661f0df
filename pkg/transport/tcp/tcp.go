// Package tcp implements the uplink over plain TCP: tcp://host:port.
package tcp

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/telenode/pkg/transport"
)

// Scheme is the URL scheme.
const Scheme = "tcp"

func init() {
	transport.Register(Scheme, New)
}

// Acquirer resolves the destination host.
type Acquirer struct {
	Addr     string
	Resolver *net.Resolver
}

// New creates an Acquirer from tcp://host:port.
func New(u *url.URL, _ transport.Options) (transport.Acquirer, error) {
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid tcp address %q: %v", u.Host, err)
	}
	if host == "" || port == "" {
		return nil, fmt.Errorf("invalid tcp address %q", u.Host)
	}
	return &Acquirer{Addr: u.Host}, nil
}

// Acquire implements transport.Acquirer.
func (a *Acquirer) Acquire(ctx context.Context) (transport.Network, error) {
	host, port, err := net.SplitHostPort(a.Addr)
	if err != nil {
		return nil, err
	}
	resolver := a.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address for %s", host)
	}
	glog.V(1).Infof("resolved %s: %v", host, addrs)
	return &Network{Addr: net.JoinHostPort(addrs[0], port)}, nil
}

// Network dials a resolved address.
type Network struct {
	Addr string
}

// Dial implements transport.Network.
func (n *Network) Dial(ctx context.Context, timeout time.Duration) (transport.Socket, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", n.Addr)
	if err != nil {
		return nil, err
	}
	return &Socket{Conn: conn, Timeout: timeout}, nil
}

// String implements transport.Network.
func (n *Network) String() string {
	return "tcp://" + n.Addr
}

// Close implements io.Closer.
func (n *Network) Close() error {
	return nil
}

// Socket wraps a TCP connection with per-operation deadlines.
type Socket struct {
	Conn    net.Conn
	Timeout time.Duration
}

// Send implements transport.Socket.
func (s *Socket) Send(p []byte) (int, error) {
	if s.Timeout > 0 {
		s.Conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	}
	return s.Conn.Write(p)
}

// Recv implements transport.Socket.
func (s *Socket) Recv(p []byte) (int, error) {
	if s.Timeout > 0 {
		s.Conn.SetReadDeadline(time.Now().Add(s.Timeout))
	}
	return s.Conn.Read(p)
}

// Close implements io.Closer.
func (s *Socket) Close() error {
	return s.Conn.Close()
}
