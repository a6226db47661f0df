// Package xbee implements the uplink over an XBee radio in transparent
// mode attached to a serial port: serial:///dev/ttyUSB0?baud=9600.
//
// In transparent mode the radio forwards whatever is written to the serial
// port to its configured destination, so a Socket is a framing of the port
// for one exchange rather than a real connection.
package xbee

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/telenode/pkg/transport"
)

// Scheme is the URL scheme.
const Scheme = "serial"

// DefaultBaudRate is the factory baud rate of XBee modules.
const DefaultBaudRate = 9600

// ErrTimeout indicates no reply arrived in time.
var ErrTimeout = errors.New("serial read timeout")

func init() {
	transport.Register(Scheme, New)
}

// OpenFunc opens a serial port.
type OpenFunc func(portName string, mode *serial.Mode) (serial.Port, error)

// Acquirer opens the serial port.
type Acquirer struct {
	PortName string
	Mode     serial.Mode
	Open     OpenFunc
}

// New creates an Acquirer from serial://<port path>?baud=<rate>.
func New(u *url.URL, _ transport.Options) (transport.Acquirer, error) {
	portName := u.Path
	if portName == "" {
		portName = u.Opaque
	}
	if u.Host != "" {
		// serial://COM3
		portName = u.Host + portName
	}
	if portName == "" {
		return nil, fmt.Errorf("serial port not specified")
	}
	a := &Acquirer{PortName: portName, Mode: serial.Mode{BaudRate: DefaultBaudRate}}
	if val := u.Query().Get("baud"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", val)
		}
		a.Mode.BaudRate = baud
	}
	return a, nil
}

// Acquire implements transport.Acquirer.
func (a *Acquirer) Acquire(ctx context.Context) (transport.Network, error) {
	open := a.Open
	if open == nil {
		open = serial.Open
	}
	mode := a.Mode
	port, err := open(a.PortName, &mode)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("opened %s at %d baud", a.PortName, mode.BaudRate)
	return &Network{Port: port, Name: a.PortName}, nil
}

// Network owns the open serial port.
type Network struct {
	Port serial.Port
	Name string

	lock sync.Mutex
}

// Dial implements transport.Network. Stale input is discarded.
func (n *Network) Dial(ctx context.Context, timeout time.Duration) (transport.Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.lock.Lock()
	if err := n.Port.ResetInputBuffer(); err != nil {
		n.lock.Unlock()
		return nil, err
	}
	if err := n.Port.SetReadTimeout(timeout); err != nil {
		n.lock.Unlock()
		return nil, err
	}
	return &Socket{network: n}, nil
}

// String implements transport.Network.
func (n *Network) String() string {
	return "serial://" + n.Name
}

// Close implements io.Closer.
func (n *Network) Close() error {
	return n.Port.Close()
}

// Socket is one exchange over the port. The port stays locked until the
// Socket is closed.
type Socket struct {
	network *Network
	once    sync.Once
}

// Send implements transport.Socket.
func (s *Socket) Send(p []byte) (int, error) {
	return s.network.Port.Write(p)
}

// Recv implements transport.Socket.
func (s *Socket) Recv(p []byte) (int, error) {
	n, err := s.network.Port.Read(p)
	if err == nil && n == 0 {
		return 0, ErrTimeout
	}
	return n, err
}

// Close implements io.Closer.
func (s *Socket) Close() error {
	s.once.Do(s.network.lock.Unlock)
	return nil
}
