package main

import (
	"flag"
	"log"

	fx "github.com/robotalks/telenode/pkg/framework"
	"github.com/robotalks/telenode/pkg/node"
	"github.com/robotalks/telenode/pkg/telemetry"

	_ "github.com/robotalks/telenode/pkg/transport/all"
)

// netprobe exercises the uplink without a sensor: it sends "test #<n>"
// every send period and "btn #<n>" on button presses.

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()

	conf := node.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}
	acq, err := conf.OpenUplink()
	if err != nil {
		log.Fatalln(err)
	}
	n, err := node.New(conf, acq)
	if err != nil {
		log.Fatalln(err)
	}
	n.WithProbe(&telemetry.Probe{})

	if conf.LEDPin != "" || conf.ButtonPin != "" {
		if err := node.InitHost(); err != nil {
			log.Fatalln(err)
		}
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
	}

	fx.NewLoop().Add(n).RunOrFail()
}
