package serialmux

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/thinkgear"
	"github.com/banshee-data/mindflex/internal/timeutil"
)

// MockSerialPort implements SerialPorter over a pipe fed by a generator.
type MockSerialPort struct {
	io.Reader
	reader *io.PipeReader

	mu      sync.Mutex
	written bytes.Buffer
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.Write(p)
}

// Written returns everything written to the port.
func (m *MockSerialPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written.Bytes()...)
}

func (m *MockSerialPort) Close() error {
	return m.reader.Close()
}

// SyntheticFrame returns the wire bytes of a plausible extended-mode frame:
// quality, attention, meditation and band powers.
func SyntheticFrame(rng *rand.Rand) []byte {
	rec := thinkgear.Record{
		Present:    thinkgear.FieldQuality | thinkgear.FieldAttention | thinkgear.FieldMeditation | thinkgear.FieldEEGBands,
		Quality:    0,
		Attention:  uint8(rng.IntN(101)),
		Meditation: uint8(rng.IntN(101)),
	}
	for i := range rec.EEGBands {
		rec.EEGBands[i] = rng.Uint32N(1 << 24)
	}
	return thinkgear.MustEncodeFrame(thinkgear.EncodeRecord(rec))
}

// NewMockSerialMux creates a SerialMux backed by a generator that emits a
// synthetic frame on every clock tick, preceded once by the legacy-mode
// sentinel so the handshake path is exercised in dev mode.
func NewMockSerialMux(clock timeutil.Clock, interval time.Duration, d *dispatch.Dispatcher) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	mockPort := &MockSerialPort{Reader: r, reader: r}

	go func() {
		defer w.Close()
		rng := rand.New(rand.NewPCG(1, 2))
		if _, err := w.Write([]byte{thinkgear.LEGACY_SENTINEL, thinkgear.LEGACY_SENTINEL}); err != nil {
			return
		}
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C() {
			if _, err := w.Write(SyntheticFrame(rng)); err != nil {
				return
			}
		}
	}()

	mux := NewSerialMux(mockPort, NewConnection("mock"), d)
	mux.SetClock(clock)
	return mux
}

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, errors, and latency.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call once ReadBuffer is drained
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// CloseCalls records the number of Close calls
	CloseCalls int

	// WriteCalls records the number of Write calls
	WriteCalls int

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read drains the read buffer, then reports ReadError, blocks, or returns io.EOF.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.Closed {
			return 0, errors.New("serial port closed")
		}
		if t.ReadBuffer.Len() > 0 {
			return t.ReadBuffer.Read(p)
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
		if !t.BlockReads {
			return 0, io.EOF
		}
		t.readCond.Wait()
	}
}

// Write writes to the write buffer, optionally simulating errors.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.CloseCalls++
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}

// SetReadError queues err for the next Read once the buffer is drained.
func (t *TestableSerialPort) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
	t.readCond.Broadcast()
}

// SetWriteError queues err for the next Write.
func (t *TestableSerialPort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteError = err
}

// MockSerialPortFactory implements SerialPortFactory for testing.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *SerialPortMode
}

// NewMockSerialPortFactory creates a new MockSerialPortFactory.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockSerialPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{
		Path: path,
		Mode: mode,
	})

	if f.Error != nil {
		return nil, f.Error
	}

	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
