// Package sh provides an interactive diagnostic shell for the sensor.
package sh

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/abiosoft/ishell"
	"periph.io/x/conn/v3/physic"

	"github.com/robotalks/telenode/pkg/crc8"
	"github.com/robotalks/telenode/pkg/node"
	"github.com/robotalks/telenode/pkg/si7021"
	"github.com/robotalks/telenode/pkg/telemetry"
)

// Sensor is the device driven by the shell.
type Sensor interface {
	Measure(si7021.Command) (si7021.Sample, error)
	MeasureRelativeHumidity() (float32, error)
	ReadPreviousTemperature() (float32, error)
	Sense(*physic.Env) error
	ChecksumPolicy() si7021.ChecksumPolicy
	SetChecksumPolicy(si7021.ChecksumPolicy)
}

// OpenFunc opens the sensor on first use.
type OpenFunc func() (Sensor, io.Closer, error)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *node.Config
	Open   OpenFunc

	sensor Sensor
	closer io.Closer
}

const (
	shellKey = "$shell"
	prompt   = "si7021 > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&RHCmd,
		&TempCmd,
		&PrevTempCmd,
		&SenseCmd,
		&CRCCmd,
		&FrameCmd,
		&PolicyCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *node.Config, open OpenFunc) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Open:   open,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Sensor opens the sensor if needed.
func (s *Shell) Sensor() (Sensor, error) {
	if s.sensor != nil {
		return s.sensor, nil
	}
	sensor, closer, err := s.Open()
	if err != nil {
		return nil, err
	}
	s.sensor, s.closer = sensor, closer
	return sensor, nil
}

// Close releases the sensor.
func (s *Shell) Close() error {
	s.sensor = nil
	if closer := s.closer; closer != nil {
		s.closer = nil
		return closer.Close()
	}
	return nil
}

// WithSensor wraps command func requires the sensor.
func WithSensor(fn func(c *ishell.Context, sensor Sensor)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		sensor, err := ShellFrom(c).Sensor()
		if err != nil {
			c.Err(err)
			return
		}
		fn(c, sensor)
	}
}

// Print prints v as JSON or with its text form.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// FormatSample prints a Sample into friendly string for display.
func FormatSample(s si7021.Sample) string {
	unit := "degC"
	if s.Command.Kind == si7021.Humidity {
		unit = "%RH"
	}
	text := fmt.Sprintf("%6.2f %s raw=0x%04x", s.Value, unit, s.Raw)
	if !s.Checked {
		return text + " crc=n/a"
	}
	if s.Valid() {
		return text + fmt.Sprintf(" crc=0x%02x ok", s.CRC)
	}
	return text + fmt.Sprintf(" crc=0x%02x computed=0x%02x MISMATCH", s.CRC, s.Computed)
}

// ParseHexBytes parses "68 3a", "683a" or "0x68 0x3a".
func ParseHexBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.ToLower(arg), "0x")
		if len(arg)%2 != 0 {
			arg = "0" + arg
		}
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", arg)
		}
		data = append(data, b...)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("bytes expected")
	}
	return data, nil
}

func measureCmd(cmd si7021.Command) func(c *ishell.Context) {
	return WithSensor(func(c *ishell.Context, sensor Sensor) {
		sample, err := sensor.Measure(cmd)
		if err != nil {
			c.Err(err)
			return
		}
		ShellFrom(c).Print(c, sample, FormatSample(sample))
	})
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// RHCmd measures humidity.
	RHCmd = ishell.Cmd{
		Name:    "rh",
		Aliases: []string{"humidity"},
		Help:    "measure relative humidity",
		Func:    measureCmd(si7021.MeasureRH),
	}

	// TempCmd measures temperature.
	TempCmd = ishell.Cmd{
		Name: "temp",
		Help: "measure temperature",
		Func: measureCmd(si7021.MeasureTemp),
	}

	// PrevTempCmd reads the temperature of the last humidity measurement.
	PrevTempCmd = ishell.Cmd{
		Name: "prevtemp",
		Help: "read temperature from the last humidity measurement",
		Func: measureCmd(si7021.ReadPrevTemp),
	}

	// SenseCmd measures both.
	SenseCmd = ishell.Cmd{
		Name: "sense",
		Help: "measure humidity and temperature",
		Func: WithSensor(func(c *ishell.Context, sensor Sensor) {
			var e physic.Env
			if err := sensor.Sense(&e); err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, map[string]string{
				"temperature": e.Temperature.String(),
				"humidity":    e.Humidity.String(),
			}, fmt.Sprintf("%s %s", e.Temperature, e.Humidity))
		}),
	}

	// CRCCmd computes the check byte of hex bytes.
	CRCCmd = ishell.Cmd{
		Name: "crc",
		Help: "HEX... compute the CRC-8 of bytes",
		Func: func(c *ishell.Context) {
			data, err := ParseHexBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sum := crc8.Checksum(data...)
			ShellFrom(c).Print(c, map[string]int{"crc": int(sum)}, fmt.Sprintf("0x%02x", sum))
		},
	}

	// FrameCmd samples and prints the telemetry frame.
	FrameCmd = ishell.Cmd{
		Name: "frame",
		Help: "sample and print the telemetry frame",
		Func: WithSensor(func(c *ishell.Context, sensor Sensor) {
			s := ShellFrom(c)
			frame, err := (&telemetry.ReadingSource{NodeID: s.Config.NodeID, Sensor: sensor}).Frame()
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, map[string]string{"frame": frame}, frame)
		}),
	}

	// PolicyCmd shows or changes the checksum policy.
	PolicyCmd = ishell.Cmd{
		Name: "policy",
		Help: "[strict|lenient] show or set the checksum policy",
		Func: WithSensor(func(c *ishell.Context, sensor Sensor) {
			if len(c.Args) > 0 {
				p, err := si7021.ParseChecksumPolicy(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				sensor.SetChecksumPolicy(p)
			}
			c.Println(sensor.ChecksumPolicy())
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main(open OpenFunc) {
	flag.Parse()
	New(node.NewConfig(), open).Run(flag.Args()...)
}
