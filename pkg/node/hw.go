package node

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	fx "github.com/robotalks/telenode/pkg/framework"
	"github.com/robotalks/telenode/pkg/si7021"
)

// InitHost loads the periph host drivers.
func InitHost() error {
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("periph host init: %v", err)
	}
	for _, failure := range state.Failed {
		glog.V(1).Infof("driver %s failed: %v", failure.D, failure.Err)
	}
	return nil
}

// OpenSensor opens the I²C bus and returns the sensor on it. The caller
// closes the bus.
func (c *Config) OpenSensor() (*si7021.Dev, i2c.BusCloser, error) {
	policy, err := c.ChecksumPolicy()
	if err != nil {
		return nil, nil, err
	}
	bus, err := i2creg.Open(c.I2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %v", c.I2CBus, err)
	}
	dev := si7021.NewI2C(bus, &si7021.Opts{Addr: uint16(c.SensorAddr), Checksum: policy})
	glog.Infof("sensor %s", dev)
	return dev, bus, nil
}

// LED is an indicator on a GPIO output.
type LED struct {
	Pin gpio.PinIO
}

// NewLED drives pin low and returns the LED.
func NewLED(pin gpio.PinIO) (*LED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, err
	}
	return &LED{Pin: pin}, nil
}

// Toggle implements telemetry.Indicator.
func (l *LED) Toggle() error {
	return l.Pin.Out(!l.Pin.Read())
}

// OpenLED looks up the LED pin. An empty name disables the LED.
func (c *Config) OpenLED() (*LED, error) {
	if c.LEDPin == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(c.LEDPin)
	if pin == nil {
		return nil, fmt.Errorf("unknown gpio %q", c.LEDPin)
	}
	return NewLED(pin)
}

// ButtonEvent is posted to the loop on every button press.
type ButtonEvent struct {
	Time time.Time
}

// Button watches a GPIO input for falling edges.
type Button struct {
	Pin gpio.PinIn
	// Poll bounds each edge wait so cancellation is noticed.
	Poll time.Duration
}

// DefaultButtonPoll is the default Button.Poll.
const DefaultButtonPoll = 200 * time.Millisecond

// Name implements Named.
func (b *Button) Name() string {
	return "button"
}

// Run implements Runnable. It only posts ButtonEvents, the loop does the
// work.
func (b *Button) Run(ctx context.Context) error {
	if err := b.Pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return err
	}
	poll := b.Poll
	if poll <= 0 {
		poll = DefaultButtonPoll
	}
	lc := fx.LoopCtlFrom(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if b.Pin.WaitForEdge(poll) {
			glog.V(1).Info("button pressed")
			lc.PostMessage(ButtonEvent{Time: time.Now()})
			lc.TriggerNext()
		}
	}
}

// OpenButton looks up the button pin. An empty name disables the button.
func (c *Config) OpenButton() (*Button, error) {
	if c.ButtonPin == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(c.ButtonPin)
	if pin == nil {
		return nil, fmt.Errorf("unknown gpio %q", c.ButtonPin)
	}
	return &Button{Pin: pin}, nil
}
