package telemetry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/telenode/pkg/transport"
)

type fakeSocket struct {
	chunk   int
	sendErr error
	reply   []byte
	recvErr error

	sends  []int
	data   []byte
	closed int
}

func (s *fakeSocket) Send(p []byte) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	n := len(p)
	if s.chunk > 0 && n > s.chunk {
		n = s.chunk
	}
	s.sends = append(s.sends, n)
	s.data = append(s.data, p[:n]...)
	return n, nil
}

func (s *fakeSocket) Recv(p []byte) (int, error) {
	if s.recvErr != nil {
		return 0, s.recvErr
	}
	return copy(p, s.reply), nil
}

func (s *fakeSocket) Close() error {
	s.closed++
	return nil
}

type fakeNetwork struct {
	sock    *fakeSocket
	dialErr error
	dials   int
	timeout time.Duration
}

func (n *fakeNetwork) Dial(_ context.Context, timeout time.Duration) (transport.Socket, error) {
	n.dials++
	n.timeout = timeout
	if n.dialErr != nil {
		return nil, n.dialErr
	}
	return n.sock, nil
}

func (n *fakeNetwork) String() string { return "fake:1234" }
func (n *fakeNetwork) Close() error   { return nil }

type fakeLink struct {
	connected bool
	network   *fakeNetwork
	drops     []error
}

func (l *fakeLink) Connected() bool { return l.connected }
func (l *fakeLink) Network() transport.Network {
	if l.network == nil {
		return nil
	}
	return l.network
}
func (l *fakeLink) Drop(cause error) {
	l.connected = false
	l.drops = append(l.drops, cause)
}

type toggler struct {
	toggles int
}

func (t *toggler) Toggle() error {
	t.toggles++
	return nil
}

type fakeSensor struct {
	rh, temp float32
	err      error
	calls    int
}

func (s *fakeSensor) MeasureRelativeHumidity() (float32, error) {
	s.calls++
	return s.rh, s.err
}

func (s *fakeSensor) ReadPreviousTemperature() (float32, error) {
	s.calls++
	return s.temp, s.err
}

func newFixture(sock *fakeSocket) (*Transaction, *fakeLink, *toggler) {
	l := &fakeLink{connected: true, network: &fakeNetwork{sock: sock}}
	led := &toggler{}
	tx := NewTransaction(l)
	tx.Indicator = led
	return tx, l, led
}

func TestTransactionSuccess(t *testing.T) {
	sock := &fakeSocket{reply: []byte("OK\r\n")}
	tx, l, led := newFixture(sock)
	sensor := &fakeSensor{rh: 44.892, temp: 24.692}
	src := &ReadingSource{NodeID: "N01", Sensor: sensor}

	res, err := tx.Do(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, "ID=N01,RH= 44.89,Temp= 24.69", res.Frame)
	require.Equal(t, res.Frame, string(sock.data))
	require.Equal(t, len(res.Frame), res.Sent)
	require.Equal(t, "OK", res.Reply)
	require.Equal(t, "fake:1234", res.Destination)
	require.Equal(t, DefaultTimeout, l.network.timeout)
	require.Equal(t, 1, sock.closed)
	require.Equal(t, 1, led.toggles)
	require.Empty(t, l.drops)

	latest, ok := src.Latest()
	require.True(t, ok)
	require.Equal(t, Reading{RH: 44.892, Temp: 24.692}, latest)
}

func TestTransactionSkippedWhenDisconnected(t *testing.T) {
	sock := &fakeSocket{}
	tx, l, led := newFixture(sock)
	l.connected = false
	sensor := &fakeSensor{}

	res, err := tx.Do(context.Background(), &ReadingSource{NodeID: "N01", Sensor: sensor})
	require.Equal(t, ErrSkipped, err)
	require.Nil(t, res)
	require.Zero(t, sensor.calls)
	require.Zero(t, l.network.dials)
	require.Zero(t, led.toggles)
}

func TestTransactionPartialSends(t *testing.T) {
	frame := "0123456789"
	for _, chunk := range []int{1, 3, 4, 9, 10, 32} {
		sock := &fakeSocket{chunk: chunk, reply: []byte("ack")}
		tx, _, _ := newFixture(sock)
		res, err := tx.Do(context.Background(), SourceFunc(func() (string, error) { return frame, nil }))
		require.NoError(t, err)
		require.Equal(t, frame, string(sock.data))
		require.Equal(t, 10, res.Sent)
		require.Len(t, sock.sends, (len(frame)+chunk-1)/chunk, "chunk %d", chunk)
	}
}

func TestTransactionFailures(t *testing.T) {
	boom := errors.New("boom")
	testCases := []struct {
		name    string
		sock    *fakeSocket
		dialErr error
		policy  DropPolicy
		errType interface{}
		dropped bool
		closed  int
	}{
		{"connect", &fakeSocket{}, boom, DropOnAnyError, &ConnectError{}, true, 0},
		{"connect-policy", &fakeSocket{}, boom, DropOnConnectError, &ConnectError{}, true, 0},
		{"send", &fakeSocket{sendErr: boom}, nil, DropOnAnyError, &SendError{}, true, 1},
		{"send-kept", &fakeSocket{sendErr: boom}, nil, DropOnConnectError, &SendError{}, false, 1},
		{"recv", &fakeSocket{recvErr: boom}, nil, DropOnAnyError, &ReceiveError{}, true, 1},
		{"recv-kept", &fakeSocket{recvErr: boom}, nil, DropOnConnectError, &ReceiveError{}, false, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx, l, led := newFixture(tc.sock)
			tx.Policy = tc.policy
			l.network.dialErr = tc.dialErr
			_, err := tx.Do(context.Background(), SourceFunc(func() (string, error) { return "x", nil }))
			require.Error(t, err)
			require.IsType(t, tc.errType, err)
			require.True(t, errors.Is(err, boom))
			require.Equal(t, tc.dropped, len(l.drops) == 1)
			require.Equal(t, !tc.dropped, l.connected)
			require.Equal(t, tc.closed, tc.sock.closed)
			require.Zero(t, led.toggles)
		})
	}
}

func TestTransactionPayloadErrorKeepsLink(t *testing.T) {
	sock := &fakeSocket{}
	tx, l, led := newFixture(sock)
	sensor := &fakeSensor{err: io.ErrUnexpectedEOF}
	_, err := tx.Do(context.Background(), &ReadingSource{NodeID: "N01", Sensor: sensor})
	require.IsType(t, &PayloadError{}, err)
	require.True(t, l.connected)
	require.Equal(t, 1, sock.closed)
	require.Empty(t, sock.sends)
	require.Zero(t, led.toggles)
}

func TestTransactionObserver(t *testing.T) {
	sock := &fakeSocket{reply: []byte("ok")}
	tx, _, _ := newFixture(sock)
	var got *Result
	tx.Observer = ObserverFunc(func(res *Result, err error) {
		require.NoError(t, err)
		got = res
	})
	res, err := tx.Do(context.Background(), SourceFunc(func() (string, error) { return "hi", nil }))
	require.NoError(t, err)
	require.Equal(t, res, got)
}

func TestSendAllNoProgress(t *testing.T) {
	sock := &zeroSocket{}
	n, err := SendAll(sock, []byte("abc"))
	require.Equal(t, ErrNoProgress, err)
	require.Zero(t, n)
}

type zeroSocket struct{ fakeSocket }

func (s *zeroSocket) Send([]byte) (int, error) { return 0, nil }

func TestTrimReply(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{"OK\r\n", "OK"},
		{"OK\n", "OK"},
		{"OK\r", "OK"},
		{"OK\n\r", "OK"},
		{"OK\r\n\r\n", "OK\r\n"},
		{"OK", "OK"},
		{"", ""},
		{"\r\n", ""},
		{"\n", ""},
		{"A\rB", "A\rB"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.out, TrimReply([]byte(tc.in)), "%q", tc.in)
	}
}

func TestTransactionTruncatesReply(t *testing.T) {
	sock := &fakeSocket{reply: []byte("0123456789012345678901234567890123456789")}
	tx, _, _ := newFixture(sock)
	res, err := tx.Do(context.Background(), SourceFunc(func() (string, error) { return "x", nil }))
	require.NoError(t, err)
	require.Len(t, res.Reply, DefaultRecvBufferSize)
}
