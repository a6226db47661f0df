// Package node assembles a telemetry node: the link state machine, the
// telemetry transaction and the tasks driving them on a single loop.
package node

import (
	"context"

	"github.com/golang/glog"

	fx "github.com/robotalks/telenode/pkg/framework"
	"github.com/robotalks/telenode/pkg/link"
	"github.com/robotalks/telenode/pkg/telemetry"
	"github.com/robotalks/telenode/pkg/transport"
)

// Probe tags of the network probe.
const (
	TagTest   = "test"
	TagButton = "btn"
)

// Node owns the link and the transaction and schedules them.
type Node struct {
	Config      *Config
	Link        *link.Machine
	Transaction *telemetry.Transaction

	// Periodic produces the frame sent every SendPeriod.
	Periodic telemetry.Source
	// OnDemand produces the frame sent on ButtonEvents.
	OnDemand telemetry.Source
	// Button is optional.
	Button fx.Runnable
}

// New creates a Node over an uplink. Sources are filled by the caller.
func New(conf *Config, acq transport.Acquirer) (*Node, error) {
	policy, err := conf.LinkDropPolicy()
	if err != nil {
		return nil, err
	}
	n := &Node{
		Config:      conf,
		Link:        link.New(acq),
		Transaction: telemetry.NewTransaction(nil),
	}
	n.Transaction.Link = n.Link
	n.Transaction.Timeout = conf.ConnectTimeout
	n.Transaction.RecvBufferSize = conf.RecvBufferSize
	n.Transaction.Policy = policy
	return n, nil
}

// WithReadings sends sensor readings periodically and on button presses.
func (n *Node) WithReadings(src *telemetry.ReadingSource) *Node {
	n.Periodic, n.OnDemand = src, src
	return n
}

// WithProbe sends probe frames tagged "test" periodically and "btn" on
// button presses.
func (n *Node) WithProbe(p *telemetry.Probe) *Node {
	n.Periodic, n.OnDemand = p.Source(TagTest), p.Source(TagButton)
	return n
}

// AddToLoop implements fx.LoopAdder. The link is checked once right away
// and then every ReconnectPeriod.
func (n *Node) AddToLoop(l *fx.Loop) {
	l.Every(n.Config.ReconnectPeriod, n.Link)
	l.Call(n.Link)
	if n.Periodic != nil {
		l.Every(n.Config.SendPeriod, fx.NamedTask("send", fx.TaskFunc(n.sendPeriodic)))
	}
	l.AddTask(fx.NamedTask("button", fx.TaskFunc(n.handleButtons)))
	if n.Button != nil {
		l.AddRunnable(n.Button)
	}
}

// Send performs one transaction with src. A skipped transaction is not
// an error.
func (n *Node) Send(ctx context.Context, src telemetry.Source) error {
	_, err := n.Transaction.Do(ctx, src)
	if err == telemetry.ErrSkipped {
		glog.V(2).Info("link down, send skipped")
		return nil
	}
	return err
}

func (n *Node) sendPeriodic(tc fx.TaskContext) error {
	n.logFailure(n.Send(tc.Context(), n.Periodic))
	return nil
}

func (n *Node) handleButtons(tc fx.TaskContext) error {
	var presses int
	tc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if _, ok := mc.CurrentMessage().(ButtonEvent); ok {
			mc.MessageTaken()
			presses++
		}
	}))
	src := n.OnDemand
	if src == nil {
		src = n.Periodic
	}
	for ; presses > 0 && src != nil; presses-- {
		n.logFailure(n.Send(tc.Context(), src))
	}
	return nil
}

// logFailure only traces: the transaction already logged the failure.
func (n *Node) logFailure(err error) {
	if err != nil {
		glog.V(1).Infof("transaction failed: %v", err)
	}
}
