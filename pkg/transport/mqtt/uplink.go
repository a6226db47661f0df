// Package mqtt implements the uplink over an MQTT broker:
// mqtt://host:port/prefix/?encoding=proto.
//
// A frame is published on <prefix><node>/telemetry and the collector
// answers on <prefix><node>/reply. The retained <prefix><node>/meta topic
// carries the node presence, cleared by the broker through a last will.
package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/telenode/pkg/transport"
)

// Scheme is the URL scheme.
const Scheme = "mqtt"

// Topic suffixes under <prefix><node>/.
const (
	TopicTelemetry = "telemetry"
	TopicReply     = "reply"
	TopicMeta      = "meta"
)

// DefaultConnectTimeout bounds connecting to the broker.
const DefaultConnectTimeout = 5 * time.Second

func init() {
	transport.Register(Scheme, New)
	transport.Register(Scheme+"s", New)
}

// Acquirer connects to the broker.
type Acquirer struct {
	URL            *url.URL
	NodeID         string
	Codec          Codec
	ConnectTimeout time.Duration
}

// New creates an Acquirer from a broker URL.
func New(u *url.URL, opts transport.Options) (transport.Acquirer, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("mqtt broker not specified")
	}
	if opts.NodeID == "" {
		return nil, fmt.Errorf("mqtt uplink requires a node id")
	}
	codec, err := CodecByName(u.Query().Get("encoding"), opts.NodeID)
	if err != nil {
		return nil, err
	}
	return &Acquirer{
		URL:            u,
		NodeID:         opts.NodeID,
		Codec:          codec,
		ConnectTimeout: DefaultConnectTimeout,
	}, nil
}

// Topic returns the topic of suffix for this node, relative to the prefix.
func (a *Acquirer) Topic(suffix string) string {
	return a.NodeID + "/" + suffix
}

// Acquire implements transport.Acquirer.
func (a *Acquirer) Acquire(ctx context.Context) (transport.Network, error) {
	options, prefix := ClientOptionsFromURL(a.URL)
	if a.URL.Query().Get("client-id") == "" {
		options.SetClientID("telenode-" + a.NodeID)
	}
	options.SetConnectTimeout(a.ConnectTimeout)
	options.SetBinaryWill(prefix+a.Topic(TopicMeta), a.Codec.Status(false), 1, true)

	q := NewQueue(options, prefix)
	if err := q.Connect(a.ConnectTimeout); err != nil {
		return nil, err
	}
	n := &Network{
		Queue:   q,
		Codec:   a.Codec,
		acq:     a,
		replyCh: make(chan []byte, 1),
	}
	if err := q.Subscribe(a.Topic(TopicReply), n.handleReply, a.ConnectTimeout); err != nil {
		q.Close()
		return nil, err
	}
	if err := wait(q.PubWith(a.Topic(TopicMeta), a.Codec.Status(true), 1, true), a.ConnectTimeout); err != nil {
		q.Close()
		return nil, err
	}
	return n, nil
}

// Network is a connected broker session.
type Network struct {
	Queue *Queue
	Codec Codec

	acq     *Acquirer
	replyCh chan []byte
}

// Dial implements transport.Network. Replies left over from a previous
// exchange are discarded.
func (n *Network) Dial(ctx context.Context, timeout time.Duration) (transport.Socket, error) {
	if !n.Queue.Client.IsConnected() {
		return nil, fmt.Errorf("mqtt broker not connected")
	}
drain:
	for {
		select {
		case <-n.replyCh:
		default:
			break drain
		}
	}
	return &Socket{network: n, ctx: ctx, timeout: timeout}, nil
}

// String implements transport.Network.
func (n *Network) String() string {
	return Scheme + "://" + n.acq.URL.Host + "/" + n.Queue.TopicPrefix + n.acq.Topic(TopicTelemetry)
}

// Close implements io.Closer.
func (n *Network) Close() error {
	if n.Queue.Client.IsConnected() {
		token := n.Queue.PubWith(n.acq.Topic(TopicMeta), n.Codec.Status(false), 1, true)
		if err := wait(token, time.Second); err != nil {
			glog.Warningf("publish offline status error: %v", err)
		}
	}
	return n.Queue.Close()
}

func (n *Network) handleReply(_ string, payload []byte) {
	reply, err := n.Codec.Decode(payload)
	if err != nil {
		glog.Warningf("dropping malformed reply: %v", err)
		return
	}
	select {
	case n.replyCh <- reply:
	default:
		glog.Warning("dropping unexpected reply")
	}
}

// Socket is one exchange on the broker session.
type Socket struct {
	network *Network
	ctx     context.Context
	timeout time.Duration
}

// Send implements transport.Socket. The whole frame goes into a single
// message.
func (s *Socket) Send(p []byte) (int, error) {
	payload, err := s.network.Codec.Encode(p)
	if err != nil {
		return 0, err
	}
	token := s.network.Queue.PubWith(s.network.acq.Topic(TopicTelemetry), payload, 1, false)
	if err := wait(token, s.timeout); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Recv implements transport.Socket.
func (s *Socket) Recv(p []byte) (int, error) {
	var timeout <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case reply := <-s.network.replyCh:
		return copy(p, reply), nil
	case <-timeout:
		return 0, ErrTimeout
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
}

// Close implements io.Closer.
func (s *Socket) Close() error {
	return nil
}
