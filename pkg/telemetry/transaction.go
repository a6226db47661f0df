// Package telemetry performs the node's request/reply exchange: one short
// lived socket per transaction, carrying a single frame and a single reply.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/telenode/pkg/transport"
)

// Defaults of a Transaction.
const (
	DefaultTimeout        = 3 * time.Second
	DefaultRecvBufferSize = 32
)

// Link is the view of the link state machine a transaction needs.
type Link interface {
	Connected() bool
	Network() transport.Network
	Drop(cause error)
}

// Indicator is toggled once per successful transaction.
type Indicator interface {
	Toggle() error
}

// DropPolicy decides which failures demote the link.
type DropPolicy int

// Drop policies
const (
	// DropOnAnyError drops the link on connect, send or receive failures.
	DropOnAnyError DropPolicy = iota
	// DropOnConnectError drops the link only when dialing fails.
	DropOnConnectError
)

// String implements fmt.Stringer.
func (p DropPolicy) String() string {
	if p == DropOnConnectError {
		return "connect"
	}
	return "any"
}

// Result describes a completed or partially completed transaction.
type Result struct {
	Destination string
	Frame       string
	Sent        int
	Reply       string
}

// Observer is told about every attempted transaction.
type Observer interface {
	TransactionDone(res *Result, err error)
}

// ObserverFunc is the func form of Observer.
type ObserverFunc func(*Result, error)

// TransactionDone implements Observer.
func (f ObserverFunc) TransactionDone(res *Result, err error) {
	f(res, err)
}

// Transaction runs request/reply exchanges over a Link. Concurrent calls
// to Do are serialized.
type Transaction struct {
	Link           Link
	Timeout        time.Duration
	RecvBufferSize int
	Policy         DropPolicy
	Indicator      Indicator
	Observer       Observer

	lock sync.Mutex
}

// NewTransaction creates a Transaction with default timeout and buffer size.
func NewTransaction(l Link) *Transaction {
	return &Transaction{
		Link:           l,
		Timeout:        DefaultTimeout,
		RecvBufferSize: DefaultRecvBufferSize,
	}
}

// Do performs one exchange. It returns ErrSkipped without touching the
// network or the source when the link is not connected. The socket is
// always closed before Do returns.
func (t *Transaction) Do(ctx context.Context, src Source) (*Result, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.Link.Connected() {
		return nil, ErrSkipped
	}
	network := t.Link.Network()
	if network == nil {
		return nil, ErrSkipped
	}
	res, err := t.exchange(ctx, network, src)
	if t.Observer != nil {
		t.Observer.TransactionDone(res, err)
	}
	return res, err
}

func (t *Transaction) exchange(ctx context.Context, network transport.Network, src Source) (*Result, error) {
	res := &Result{Destination: network.String()}
	glog.Infof("Sending request to %s...", res.Destination)

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sock, err := network.Dial(ctx, timeout)
	if err != nil {
		glog.Errorf("...error in connect: %v", err)
		t.Link.Drop(err)
		return res, &ConnectError{Err: err}
	}
	closed := false
	closeSock := func() {
		if closed {
			return
		}
		closed = true
		if err := sock.Close(); err != nil {
			glog.Warningf("...close error: %v", err)
		}
	}
	defer closeSock()

	if res.Frame, err = src.Frame(); err != nil {
		glog.Errorf("...error sampling payload: %v", err)
		return res, &PayloadError{Err: err}
	}

	if res.Sent, err = SendAll(sock, []byte(res.Frame)); err != nil {
		glog.Errorf("...error sending data: %v", err)
		t.failed(err)
		return res, &SendError{Sent: res.Sent, Err: err}
	}

	size := t.RecvBufferSize
	if size <= 0 {
		size = DefaultRecvBufferSize
	}
	buf := make([]byte, size)
	n, err := sock.Recv(buf)
	if err != nil && n <= 0 {
		glog.Errorf("...error receiving data: %v", err)
		t.failed(err)
		return res, &ReceiveError{Err: err}
	}
	res.Reply = TrimReply(buf[:n])
	glog.Infof("...received: '%s'", res.Reply)

	closeSock()
	if t.Indicator != nil {
		if err := t.Indicator.Toggle(); err != nil {
			glog.Warningf("toggle indicator error: %v", err)
		}
	}
	return res, nil
}

func (t *Transaction) failed(err error) {
	if t.Policy == DropOnAnyError {
		t.Link.Drop(err)
	}
}

// SendAll submits p through repeated partial sends until every byte is
// accepted or an error occurs. It returns the number of bytes accepted.
func SendAll(sock transport.Socket, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := sock.Send(p[sent:])
		if n > 0 {
			sent += n
			glog.V(1).Infof("...sent:%d bytes", n)
		}
		if err != nil {
			return sent, err
		}
		if n <= 0 {
			return sent, ErrNoProgress
		}
	}
	return sent, nil
}

// TrimReply removes at most two trailing line terminators (CR or LF).
func TrimReply(p []byte) string {
	end := len(p)
	for i := 0; i < 2 && end > 0; i++ {
		if c := p[end-1]; c != '\r' && c != '\n' {
			break
		}
		end--
	}
	return string(p[:end])
}
