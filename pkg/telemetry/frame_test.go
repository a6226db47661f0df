package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadingFrame(t *testing.T) {
	require.Equal(t, "ID=N01,RH= 44.89,Temp= 24.69",
		ReadingFrame("N01", Reading{RH: 44.892, Temp: 24.692}))
	require.Equal(t, "ID=abc,RH=118.99,Temp=128.87",
		ReadingFrame("abc", Reading{RH: 118.99, Temp: 128.867}))
	require.Equal(t, "ID=abc,RH= -6.00,Temp=-46.85",
		ReadingFrame("abc", Reading{RH: -6, Temp: -46.85}))
}

func TestProbe(t *testing.T) {
	p := &Probe{}
	require.Equal(t, "test #1\r", p.Next("test"))
	require.Equal(t, "btn #2\r", p.Next("btn"))
	frame, err := p.Source("test").Frame()
	require.NoError(t, err)
	require.Equal(t, "test #3\r", frame)
}

func TestValidateNodeID(t *testing.T) {
	require.NoError(t, ValidateNodeID("N01"))
	require.Error(t, ValidateNodeID("N1"))
	require.Error(t, ValidateNodeID("N001"))
	require.Error(t, ValidateNodeID("N,1"))
	require.Error(t, ValidateNodeID("N 1"))
}

func TestReadingSourceLatestEmpty(t *testing.T) {
	_, ok := (&ReadingSource{}).Latest()
	require.False(t, ok)
}
