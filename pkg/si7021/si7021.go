// Package si7021 controls a Silicon Labs Si7021 relative humidity and
// temperature sensor over I²C.
//
// Every measurement is an independent transaction: a one byte command
// write followed by a fixed size response read. The driver never retries,
// retry policy belongs to the caller.
package si7021

import (
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/robotalks/telenode/pkg/crc8"
)

// DefaultAddr is the fixed I²C address of the Si7021.
const DefaultAddr uint16 = 0x40

// ChecksumPolicy decides what happens when the check byte doesn't match.
type ChecksumPolicy int

const (
	// ChecksumLenient logs a mismatch and still returns the reading.
	// Sample.Valid reports the outcome.
	ChecksumLenient ChecksumPolicy = iota
	// ChecksumStrict rejects readings with a mismatching check byte.
	ChecksumStrict
)

// String implements fmt.Stringer.
func (p ChecksumPolicy) String() string {
	switch p {
	case ChecksumLenient:
		return "lenient"
	case ChecksumStrict:
		return "strict"
	default:
		return fmt.Sprintf("ChecksumPolicy(%d)", int(p))
	}
}

// ParseChecksumPolicy parses "lenient" or "strict".
func ParseChecksumPolicy(s string) (ChecksumPolicy, error) {
	switch s {
	case "lenient", "":
		return ChecksumLenient, nil
	case "strict":
		return ChecksumStrict, nil
	}
	return ChecksumLenient, fmt.Errorf("unknown checksum policy %q", s)
}

// Opts holds the configuration options.
type Opts struct {
	Addr     uint16
	Checksum ChecksumPolicy
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:     DefaultAddr,
	Checksum: ChecksumLenient,
}

// Dev is a handle to a Si7021 on an I²C bus.
type Dev struct {
	d        i2c.Dev
	checksum ChecksumPolicy
}

// NewI2C returns a handle to a Si7021 on the bus. opts may be nil to use
// DefaultOpts. No bus traffic happens until the first measurement.
func NewI2C(b i2c.Bus, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Dev{
		d:        i2c.Dev{Bus: b, Addr: addr},
		checksum: opts.Checksum,
	}
}

// ChecksumPolicy returns the current policy.
func (d *Dev) ChecksumPolicy() ChecksumPolicy {
	return d.checksum
}

// SetChecksumPolicy changes the policy for subsequent measurements.
func (d *Dev) SetChecksumPolicy(p ChecksumPolicy) {
	d.checksum = p
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("Si7021{%s}", &d.d)
}

// Halt implements conn.Resource. The sensor has no continuous mode.
func (d *Dev) Halt() error {
	return nil
}

// MeasureRelativeHumidity performs a humidity measurement (%RH).
func (d *Dev) MeasureRelativeHumidity() (float32, error) {
	s, err := d.Measure(MeasureRH)
	return s.Value, err
}

// ReadPreviousTemperature reads the temperature (°C) taken during the last
// humidity measurement. The device sends no check byte for this command.
func (d *Dev) ReadPreviousTemperature() (float32, error) {
	s, err := d.Measure(ReadPrevTemp)
	return s.Value, err
}

// MeasureAmbientTemperature performs a temperature measurement (°C).
func (d *Dev) MeasureAmbientTemperature() (float32, error) {
	s, err := d.Measure(MeasureTemp)
	return s.Value, err
}

// Sense measures humidity and reads the temperature from the same
// conversion into e.
func (d *Dev) Sense(e *physic.Env) error {
	rh, err := d.MeasureRelativeHumidity()
	if err != nil {
		return err
	}
	temp, err := d.ReadPreviousTemperature()
	if err != nil {
		return err
	}
	e.Humidity = physic.RelativeHumidity(float64(rh) * float64(physic.PercentRH))
	e.Temperature = physic.ZeroCelsius + physic.Temperature(float64(temp)*float64(physic.Kelvin))
	return nil
}

// Measure runs one command/response transaction. On error the returned
// Sample must not be used.
func (d *Dev) Measure(cmd Command) (Sample, error) {
	s := Sample{Command: cmd}
	if err := d.d.Tx([]byte{cmd.Code}, nil); err != nil {
		return s, &BusError{Op: "write", Command: cmd, Err: err}
	}
	buf := make([]byte, cmd.ResponseLen())
	if err := d.d.Tx(nil, buf); err != nil {
		return s, &BusError{Op: "read", Command: cmd, Err: err}
	}
	glog.V(3).Infof("si7021 %s: % x", cmd, buf)

	s.Raw = uint16(buf[0])<<8 | uint16(buf[1])
	s.Value = cmd.Decode(s.Raw)
	if cmd.Kind == Humidity {
		glog.V(2).Infof("RH=%6.2f %%", s.Value)
	} else {
		glog.V(2).Infof("Temperature:%6.2f degC", s.Value)
	}

	if !cmd.Checked {
		glog.V(2).Infof("checksum not available with command 0x%02X", cmd.Code)
		return s, nil
	}
	s.Checked = true
	s.CRC = buf[2]
	s.Computed = crc8.Checksum(buf[0], buf[1])
	glog.V(2).Infof("CRC from Si7021 = 0x%02x and calculated CRC = 0x%02x", s.CRC, s.Computed)
	if s.Valid() {
		return s, nil
	}
	mismatch := &crc8.MismatchError{Expected: s.CRC, Computed: s.Computed}
	if d.checksum == ChecksumStrict {
		return s, &ChecksumError{Command: cmd, Err: mismatch}
	}
	glog.Warningf("si7021 %s: %v", cmd, mismatch)
	return s, nil
}
