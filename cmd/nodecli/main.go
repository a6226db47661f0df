package main

import (
	"io"

	"github.com/robotalks/telenode/pkg/cli/sh"
	"github.com/robotalks/telenode/pkg/node"
)

func init() {
	node.SetupFlags()
}

func openSensor() (sh.Sensor, io.Closer, error) {
	if err := node.InitHost(); err != nil {
		return nil, nil, err
	}
	dev, bus, err := node.NewConfig().OpenSensor()
	if err != nil {
		return nil, nil, err
	}
	return dev, bus, nil
}

func main() {
	sh.Main(openSensor)
}
