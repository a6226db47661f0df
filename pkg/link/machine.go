// Package link keeps the uplink "as open as possible".
//
// Machine is a level triggered reconciler: every tick it compares the
// current state with the desired one (connected) and, when disconnected,
// tries to acquire the network again. It is safe to tick regardless of the
// current state.
package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/telenode/pkg/framework"
	"github.com/robotalks/telenode/pkg/transport"
)

// State is the connection state.
type State int32

// States
const (
	Disconnected State = iota
	Connected
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Connected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// ErrNoNetwork indicates the acquirer returned neither a network nor an error.
var ErrNoNetwork = errors.New("no network handle acquired")

// StateNotifier is called on every state transition.
type StateNotifier interface {
	StateChanged(state State, cause error)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(State, error)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(state State, cause error) {
	f(state, cause)
}

// Machine owns the connection state and the acquired network.
type Machine struct {
	Acquirer transport.Acquirer
	Notifier StateNotifier

	state   int32
	network transport.Network
	lock    sync.Mutex
}

// New creates a Machine in the Disconnected state.
func New(acq transport.Acquirer) *Machine {
	return &Machine{Acquirer: acq}
}

// State returns the current state.
func (m *Machine) State() State {
	return State(atomic.LoadInt32(&m.state))
}

// Connected reports whether it's safe to send now.
func (m *Machine) Connected() bool {
	return m.State() == Connected
}

// Network returns the acquired network, nil when disconnected.
func (m *Machine) Network() transport.Network {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.network
}

// Tick runs one reconcile step.
func (m *Machine) Tick(ctx context.Context) error {
	if m.Connected() {
		return nil
	}

	glog.Info("> Initializing Network...")
	network, err := m.Acquirer.Acquire(ctx)
	if err == nil && network == nil {
		err = ErrNoNetwork
	}
	if err != nil {
		glog.Warningf("> ...connection FAILED: %v", err)
		return nil
	}
	glog.Infof("> ...connection SUCCEEDED: %s", network)

	m.lock.Lock()
	m.network = network
	atomic.StoreInt32(&m.state, int32(Connected))
	m.lock.Unlock()
	m.notify(Connected, nil)
	return nil
}

// Drop forces the Disconnected state and releases the network. The next
// tick reconnects.
func (m *Machine) Drop(cause error) {
	m.lock.Lock()
	network := m.network
	m.network = nil
	wasConnected := atomic.SwapInt32(&m.state, int32(Disconnected)) == int32(Connected)
	m.lock.Unlock()

	if network != nil {
		if err := network.Close(); err != nil {
			glog.Warningf("close network %s error: %v", network, err)
		}
	}
	if wasConnected {
		glog.Warningf("link dropped: %v", cause)
		m.notify(Disconnected, cause)
	}
}

// Name implements Named.
func (m *Machine) Name() string {
	return "reconnect"
}

// RunTask implements Task.
func (m *Machine) RunTask(tc fx.TaskContext) error {
	return m.Tick(tc.Context())
}

func (m *Machine) notify(state State, cause error) {
	if n := m.Notifier; n != nil {
		n.StateChanged(state, cause)
	}
}
