package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 57600, DataBits: 8, StopBits: 1, Parity: "N"}, opts)
}

func TestPortOptions_NormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	assert.True(t, PortOptions{}.Equal(PortOptions{BaudRate: 57600, Parity: "none"}))
	assert.False(t, PortOptions{}.Equal(PortOptions{BaudRate: 9600}))
	assert.False(t, PortOptions{Parity: "x"}.Equal(PortOptions{Parity: "x"}))
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{Parity: "even", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	_, err = PortOptions{DataBits: 2}.SerialMode()
	assert.Error(t, err)
}

func TestDefaultSerialPortMode(t *testing.T) {
	mode := DefaultSerialPortMode()
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, NoParity, mode.Parity)
	assert.Equal(t, OneStopBit, mode.StopBits)
}
