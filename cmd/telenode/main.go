package main

import (
	"flag"
	"log"

	fx "github.com/robotalks/telenode/pkg/framework"
	"github.com/robotalks/telenode/pkg/monitor"
	"github.com/robotalks/telenode/pkg/node"
	"github.com/robotalks/telenode/pkg/telemetry"

	_ "github.com/robotalks/telenode/pkg/transport/all"
)

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()

	conf := node.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}
	if err := node.InitHost(); err != nil {
		log.Fatalln(err)
	}
	dev, bus, err := conf.OpenSensor()
	if err != nil {
		log.Fatalln(err)
	}
	defer bus.Close()

	acq, err := conf.OpenUplink()
	if err != nil {
		log.Fatalln(err)
	}
	n, err := node.New(conf, acq)
	if err != nil {
		log.Fatalln(err)
	}
	n.WithReadings(&telemetry.ReadingSource{NodeID: conf.NodeID, Sensor: dev})

	led, err := conf.OpenLED()
	if err != nil {
		log.Fatalln(err)
	}
	if led != nil {
		n.Transaction.Indicator = led
	}
	btn, err := conf.OpenButton()
	if err != nil {
		log.Fatalln(err)
	}
	if btn != nil {
		n.Button = btn
	}

	loop := fx.NewLoop().Add(n)
	if conf.MonitorAddr != "" {
		hub := monitor.NewHub(conf.MonitorAddr)
		n.Link.Notifier = hub
		n.Transaction.Observer = hub
		loop.AddRunnable(hub)
	}
	loop.RunOrFail()
}
