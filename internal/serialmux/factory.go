package serialmux

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/mindflex/internal/dispatch"
)

// NewRealSerialMux opens the headset's serial device at path using opts and
// returns a SerialMux feeding d.
func NewRealSerialMux(path string, opts PortOptions, d *dispatch.Dispatcher) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port, NewConnection(path), d), nil
}

// Connect opens path through factory and returns a SerialMux with a fresh
// Connection.
func Connect(factory SerialPortFactory, path string, opts PortOptions, d *dispatch.Dispatcher) (*SerialMux[SerialPorter], error) {
	mode, err := opts.PortMode()
	if err != nil {
		return nil, err
	}
	port, err := factory.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSerialMux[SerialPorter](port, NewConnection(path), d), nil
}
