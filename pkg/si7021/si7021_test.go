package si7021

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/robotalks/telenode/pkg/crc8"
)

// failingBus fails the n-th Tx (0 based) and answers zeros otherwise.
type failingBus struct {
	failAt int
	calls  int
	writes [][]byte
}

func (b *failingBus) String() string                     { return "failing" }
func (b *failingBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *failingBus) Tx(addr uint16, w, r []byte) error {
	n := b.calls
	b.calls++
	if w != nil {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	if n == b.failAt {
		return errors.New("nack")
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

func playback(cmd byte, resp ...byte) *i2ctest.Playback {
	return &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddr, W: []byte{cmd}},
			{Addr: DefaultAddr, R: resp},
		},
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		raw  uint16
		rh   float32
		temp float32
	}{
		{"zero", 0, -6.0, -46.85},
		{"max", 0xffff, 118.998, 128.867},
		{"sample", 0x683a, 44.892, 24.692},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.rh, DecodeRH(tc.raw), 1e-3)
			require.InDelta(t, tc.temp, DecodeTemperature(tc.raw), 1e-3)
		})
	}
}

func TestMeasureRelativeHumidity(t *testing.T) {
	bus := playback(0xE5, 0x68, 0x3A, 0x7C)
	dev := NewI2C(bus, nil)
	rh, err := dev.MeasureRelativeHumidity()
	require.NoError(t, err)
	require.InDelta(t, 44.89, rh, 0.01)
	require.NoError(t, bus.Close())
}

func TestMeasureAmbientTemperature(t *testing.T) {
	bus := playback(0xE3, 0x66, 0x4C, crc8.Checksum(0x66, 0x4C))
	dev := NewI2C(bus, nil)
	temp, err := dev.MeasureAmbientTemperature()
	require.NoError(t, err)
	require.InDelta(t, 23.367, temp, 0.01)
	require.NoError(t, bus.Close())
}

func TestReadPreviousTemperatureReadsTwoBytes(t *testing.T) {
	bus := playback(0xE0, 0x66, 0x4C)
	dev := NewI2C(bus, &Opts{Checksum: ChecksumStrict})
	s, err := dev.Measure(ReadPrevTemp)
	require.NoError(t, err)
	require.False(t, s.Checked)
	require.True(t, s.Valid())
	require.InDelta(t, 23.367, s.Value, 0.01)
	require.NoError(t, bus.Close())
}

func TestChecksumPolicy(t *testing.T) {
	testCases := []struct {
		name   string
		policy ChecksumPolicy
		strict bool
	}{
		{"lenient", ChecksumLenient, false},
		{"strict", ChecksumStrict, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bus := playback(0xE5, 0x68, 0x3A, 0x00)
			dev := NewI2C(bus, &Opts{Checksum: tc.policy})
			s, err := dev.Measure(MeasureRH)
			require.True(t, s.Checked)
			require.False(t, s.Valid())
			require.Equal(t, byte(0x00), s.CRC)
			require.Equal(t, byte(0x7C), s.Computed)
			if tc.strict {
				require.Error(t, err)
				var csErr *ChecksumError
				require.True(t, errors.As(err, &csErr))
				var mismatch *crc8.MismatchError
				require.True(t, errors.As(err, &mismatch))
			} else {
				require.NoError(t, err)
				require.InDelta(t, 44.89, s.Value, 0.01)
			}
		})
	}
}

func TestBusErrors(t *testing.T) {
	testCases := []struct {
		name   string
		failAt int
		op     string
	}{
		{"write fails", 0, "write"},
		{"read fails", 1, "read"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bus := &failingBus{failAt: tc.failAt}
			dev := NewI2C(bus, nil)
			_, err := dev.MeasureRelativeHumidity()
			require.Error(t, err)
			busErr, ok := err.(*BusError)
			require.True(t, ok)
			require.Equal(t, tc.op, busErr.Op)
			require.Equal(t, MeasureRH, busErr.Command)
			require.Equal(t, tc.failAt+1, bus.calls)
			require.Equal(t, [][]byte{{0xE5}}, bus.writes)
		})
	}
}

func TestSense(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddr, W: []byte{0xE5}},
			{Addr: DefaultAddr, R: []byte{0x68, 0x3A, 0x7C}},
			{Addr: DefaultAddr, W: []byte{0xE0}},
			{Addr: DefaultAddr, R: []byte{0x66, 0x4C}},
		},
	}
	dev := NewI2C(bus, nil)
	var env physic.Env
	require.NoError(t, dev.Sense(&env))
	require.InDelta(t, 44.89*float64(physic.PercentRH), float64(env.Humidity), 0.01*float64(physic.PercentRH))
	celsius := float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin)
	require.InDelta(t, 23.367, celsius, 0.01)
	require.NoError(t, bus.Close())
}

func TestParseChecksumPolicy(t *testing.T) {
	p, err := ParseChecksumPolicy("strict")
	require.NoError(t, err)
	require.Equal(t, ChecksumStrict, p)
	p, err = ParseChecksumPolicy("")
	require.NoError(t, err)
	require.Equal(t, ChecksumLenient, p)
	_, err = ParseChecksumPolicy("paranoid")
	require.Error(t, err)
}
