package si7021

import "fmt"

// Kind is the physical quantity returned by a command.
type Kind int

// Kinds
const (
	Humidity Kind = iota
	Temperature
)

// Command describes one measurement transaction.
type Command struct {
	Name    string
	Code    byte
	Kind    Kind
	Checked bool // the response carries a trailing check byte
}

// Commands
var (
	MeasureRH    = Command{Name: "measure-rh", Code: 0xE5, Kind: Humidity, Checked: true}
	ReadPrevTemp = Command{Name: "read-prev-temp", Code: 0xE0, Kind: Temperature}
	MeasureTemp  = Command{Name: "measure-temp", Code: 0xE3, Kind: Temperature, Checked: true}
)

// ResponseLen is the number of bytes read back.
func (c Command) ResponseLen() int {
	if c.Checked {
		return 3
	}
	return 2
}

// Decode converts a raw word to physical units.
func (c Command) Decode(t uint16) float32 {
	if c.Kind == Humidity {
		return DecodeRH(t)
	}
	return DecodeTemperature(t)
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return fmt.Sprintf("%s(0x%02X)", c.Name, c.Code)
}

// DecodeRH converts a raw humidity word to %RH.
func DecodeRH(t uint16) float32 {
	return 125*float32(t)/65536 - 6.0
}

// DecodeTemperature converts a raw temperature word to °C.
func DecodeTemperature(t uint16) float32 {
	return 175.72*float32(t)/65536 - 46.85
}

// Sample is the outcome of one transaction.
type Sample struct {
	Command  Command
	Raw      uint16
	Value    float32
	CRC      byte // check byte sent by the device
	Computed byte // check byte computed over the data bytes
	Checked  bool // CRC and Computed are meaningful
}

// Valid reports whether the check byte matched. Samples without a
// check byte are always valid.
func (s Sample) Valid() bool {
	return !s.Checked || s.CRC == s.Computed
}
