package node

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/telenode/pkg/si7021"
	"github.com/robotalks/telenode/pkg/telemetry"
	"github.com/robotalks/telenode/pkg/transport"
)

// Config defines the configurations of a node.
type Config struct {
	// NodeID is the 3 character identifier put in every frame.
	NodeID string
	// UplinkURL selects the uplink, e.g. tcp://host:port,
	// serial:///dev/ttyUSB0?baud=9600, mqtt://host:1883/prefix/.
	UplinkURL string

	I2CBus     string
	SensorAddr uint
	Checksum   string

	ReconnectPeriod time.Duration
	SendPeriod      time.Duration
	ConnectTimeout  time.Duration
	RecvBufferSize  int
	DropPolicy      string

	LEDPin    string
	ButtonPin string

	// MonitorAddr enables the local websocket monitor when not empty.
	MonitorAddr string
}

var defaultConfig = Config{
	NodeID:          DefaultNodeID(),
	UplinkURL:       "tcp://localhost:8888",
	SensorAddr:      uint(si7021.DefaultAddr),
	Checksum:        si7021.ChecksumLenient.String(),
	ReconnectPeriod: 5 * time.Second,
	SendPeriod:      time.Second,
	ConnectTimeout:  telemetry.DefaultTimeout,
	RecvBufferSize:  telemetry.DefaultRecvBufferSize,
	DropPolicy:      telemetry.DropOnAnyError.String(),
}

func init() {
	if val := os.Getenv("TELENODE_ID"); val != "" {
		defaultConfig.NodeID = val
	}
	if val := os.Getenv("TELENODE_UPLINK"); val != "" {
		defaultConfig.UplinkURL = val
	}
	if val := os.Getenv("TELENODE_I2C_BUS"); val != "" {
		defaultConfig.I2CBus = val
	}
	if val := os.Getenv("TELENODE_SENSOR_ADDR"); val != "" {
		if addr, err := strconv.ParseUint(val, 0, 16); err == nil {
			defaultConfig.SensorAddr = uint(addr)
		}
	}
	if val := os.Getenv("TELENODE_CHECKSUM"); val != "" {
		defaultConfig.Checksum = val
	}
	if val := os.Getenv("TELENODE_DROP_POLICY"); val != "" {
		defaultConfig.DropPolicy = val
	}
	if val := os.Getenv("TELENODE_LED"); val != "" {
		defaultConfig.LEDPin = val
	}
	if val := os.Getenv("TELENODE_BUTTON"); val != "" {
		defaultConfig.ButtonPin = val
	}
	if val := os.Getenv("TELENODE_MONITOR"); val != "" {
		defaultConfig.MonitorAddr = val
	}
}

// DefaultNodeID derives a node ID from the machine ID.
func DefaultNodeID() string {
	id, err := machineid.ProtectedID("telenode")
	if err != nil || len(id) < telemetry.NodeIDLen {
		return "N00"
	}
	return strings.ToUpper(id[:telemetry.NodeIDLen])
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.NodeID, "id", defaultConfig.NodeID, "Node ID, 3 characters.")
	flag.StringVar(&defaultConfig.UplinkURL, "uplink", defaultConfig.UplinkURL, "Uplink URL.")
	flag.StringVar(&defaultConfig.I2CBus, "i2c-bus", defaultConfig.I2CBus, "I2C bus name, empty for the first one.")
	flag.UintVar(&defaultConfig.SensorAddr, "sensor-addr", defaultConfig.SensorAddr, "Sensor I2C address.")
	flag.StringVar(&defaultConfig.Checksum, "checksum", defaultConfig.Checksum, "Checksum policy: lenient or strict.")
	flag.DurationVar(&defaultConfig.ReconnectPeriod, "reconnect-period", defaultConfig.ReconnectPeriod, "Period of link checks.")
	flag.DurationVar(&defaultConfig.SendPeriod, "send-period", defaultConfig.SendPeriod, "Period of telemetry transactions.")
	flag.DurationVar(&defaultConfig.ConnectTimeout, "timeout", defaultConfig.ConnectTimeout, "Socket timeout.")
	flag.IntVar(&defaultConfig.RecvBufferSize, "recv-buffer", defaultConfig.RecvBufferSize, "Reply buffer size.")
	flag.StringVar(&defaultConfig.DropPolicy, "drop-policy", defaultConfig.DropPolicy, "Link drop policy: any or connect.")
	flag.StringVar(&defaultConfig.LEDPin, "led", defaultConfig.LEDPin, "GPIO pin name of the indicator LED.")
	flag.StringVar(&defaultConfig.ButtonPin, "button", defaultConfig.ButtonPin, "GPIO pin name of the button.")
	flag.StringVar(&defaultConfig.MonitorAddr, "monitor", defaultConfig.MonitorAddr, "Listen address of the websocket monitor.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := telemetry.ValidateNodeID(c.NodeID); err != nil {
		return err
	}
	if c.SensorAddr == 0 || c.SensorAddr > 0x7f {
		return fmt.Errorf("invalid sensor address 0x%x", c.SensorAddr)
	}
	if _, err := c.ChecksumPolicy(); err != nil {
		return err
	}
	if _, err := c.LinkDropPolicy(); err != nil {
		return err
	}
	if c.ReconnectPeriod <= 0 || c.SendPeriod <= 0 {
		return fmt.Errorf("periods must be positive")
	}
	if c.RecvBufferSize <= 0 {
		return fmt.Errorf("invalid reply buffer size %d", c.RecvBufferSize)
	}
	return nil
}

// ChecksumPolicy parses Checksum.
func (c *Config) ChecksumPolicy() (si7021.ChecksumPolicy, error) {
	return si7021.ParseChecksumPolicy(c.Checksum)
}

// LinkDropPolicy parses DropPolicy.
func (c *Config) LinkDropPolicy() (telemetry.DropPolicy, error) {
	switch c.DropPolicy {
	case "", telemetry.DropOnAnyError.String():
		return telemetry.DropOnAnyError, nil
	case telemetry.DropOnConnectError.String():
		return telemetry.DropOnConnectError, nil
	}
	return telemetry.DropOnAnyError, fmt.Errorf("unknown drop policy %q", c.DropPolicy)
}

// OpenUplink creates the Acquirer of UplinkURL.
func (c *Config) OpenUplink() (transport.Acquirer, error) {
	acq, err := transport.Open(c.UplinkURL, transport.Options{NodeID: c.NodeID})
	if err != nil {
		return nil, err
	}
	glog.Infof("uplink %s", c.UplinkURL)
	return acq, nil
}
