package serialmux

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/testutil"
	"github.com/banshee-data/mindflex/internal/thinkgear"
)

type collector struct {
	records  []thinkgear.Record
	triggers []dispatch.Trigger
}

func (c *collector) OnRecord(r thinkgear.Record) error {
	c.records = append(c.records, r)
	return nil
}

func (c *collector) OnTrigger(t dispatch.Trigger) error {
	c.triggers = append(c.triggers, t)
	return nil
}

func newTestMux(t *testing.T, opts dispatch.Options, data ...[]byte) (*SerialMux[*TestableSerialPort], *TestableSerialPort, *collector) {
	t.Helper()
	port := NewTestableSerialPort()
	for _, d := range data {
		port.AddReadData(d)
	}
	c := &collector{}
	d := dispatch.New(opts)
	d.Subscribe(c)
	return NewSerialMux(port, NewConnection("/dev/test"), d), port, c
}

func TestMonitor_ConcreteFrame(t *testing.T) {
	mux, _, c := newTestMux(t, dispatch.Options{Verbose: true, Threshold: 50},
		[]byte{0xAA, 0xAA, 0x04, 0x02, 0x64, 0x04, 0x32, 0x63})

	require.NoError(t, mux.Monitor(context.Background()))

	require.Len(t, c.records, 1)
	assert.Equal(t, map[string]any{"quality": uint8(100), "attention": uint8(50)}, c.records[0].Map())
	assert.Len(t, c.triggers, 1)
	assert.EqualValues(t, 1, mux.Status().Stats.Frames)
}

func TestMonitor_BadChecksumThenValidFrame(t *testing.T) {
	bad := []byte{0xAA, 0xAA, 0x04, 0x02, 0x64, 0x04, 0x32, 0x00}
	good := thinkgear.MustEncodeFrame([]byte{0x02, 0x10, 0x04, 0x20, 0x05, 0x30})
	mux, _, c := newTestMux(t, dispatch.Options{Threshold: 100}, bad, good)

	require.NoError(t, mux.Monitor(context.Background()))

	require.Len(t, c.records, 1)
	assert.EqualValues(t, 0x20, c.records[0].Attention)
	stats := mux.Status().Stats
	assert.EqualValues(t, 1, stats.ChecksumErrors)
	assert.EqualValues(t, 1, stats.Frames)
}

func TestMonitor_DecodeErrorDropsRecordOnly(t *testing.T) {
	truncated := thinkgear.MustEncodeFrame([]byte{0x02, 0x00, 0x83, 0x18, 0x01})
	good := thinkgear.MustEncodeFrame([]byte{0x02, 0x10, 0x04, 0x20, 0x05, 0x30})
	mux, _, c := newTestMux(t, dispatch.Options{}, truncated, good)

	require.NoError(t, mux.Monitor(context.Background()))

	assert.Len(t, c.records, 1)
	stats := mux.Status().Stats
	assert.EqualValues(t, 1, stats.DecodeErrors)
	assert.EqualValues(t, 2, stats.Frames)
}

func TestMonitor_LengthOverflowResyncs(t *testing.T) {
	overflow := []byte{0xAA, 0xAA, 0xC8, 0x02, 0x04}
	good := thinkgear.MustEncodeFrame([]byte{0x02, 0x10, 0x04, 0x20, 0x05, 0x30})
	mux, _, c := newTestMux(t, dispatch.Options{}, overflow, good)

	require.NoError(t, mux.Monitor(context.Background()))

	assert.Len(t, c.records, 1)
	assert.EqualValues(t, 1, mux.Status().Stats.FramingErrors)
}

func TestMonitor_HandshakeWritten(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{}, []byte{0x00, 0xE0, 0xE0, 0x00})

	require.NoError(t, mux.Monitor(context.Background()))

	assert.Equal(t, thinkgear.HandshakeCommand, port.GetWrittenData())
	hs := mux.Connection().Handshake()
	assert.Equal(t, 1, hs.Sent)
	assert.False(t, hs.LastSent.IsZero())
	assert.EqualValues(t, 1, mux.Status().Stats.Handshakes)
}

func TestMonitor_RepeatedSentinelsRetrigger(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{}, []byte{0xE0, 0xE0, 0xE0})

	require.NoError(t, mux.Monitor(context.Background()))

	want := append(append([]byte(nil), thinkgear.HandshakeCommand...), thinkgear.HandshakeCommand...)
	assert.Equal(t, want, port.GetWrittenData())
}

func TestMonitor_HandshakeWriteFailureIsFatal(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{}, []byte{0xE0, 0xE0})
	port.SetWriteError(errors.New("device unplugged"))

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestMonitor_ReadFailureIsFatal(t *testing.T) {
	mux, port, c := newTestMux(t, dispatch.Options{Verbose: true},
		thinkgear.MustEncodeFrame([]byte{0x04, 0x10}))
	readErr := errors.New("input/output error")
	port.SetReadError(readErr)

	err := mux.Monitor(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, readErr)
	assert.Len(t, c.records, 1, "bytes read before the failure are still processed")
}

func TestMonitor_ContextCancel(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{})
	port.BlockReads = true
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	// leave the synchronizer mid-frame
	port.AddReadData([]byte{0xAA, 0xAA, 0x10, 0x02})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMonitor_CloseDuringRead(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{})
	port.BlockReads = true

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
}

func TestClose_Idempotent(t *testing.T) {
	mux, port, _ := newTestMux(t, dispatch.Options{})
	port.CloseError = errors.New("close failed")

	err1 := mux.Close()
	err2 := mux.Close()
	assert.EqualError(t, err1, "close failed")
	assert.Equal(t, err1, err2)
	assert.Equal(t, 1, port.CloseCalls)
}

func TestMonitor_SplitReadsAcrossFrameBoundaries(t *testing.T) {
	stream := bytes.Repeat(thinkgear.MustEncodeFrame([]byte{0x02, 0x00, 0x04, 0x40, 0x05, 0x41}), 20)
	port := NewTestableSerialPort()
	port.BlockReads = true
	c := &collector{}
	d := dispatch.New(dispatch.Options{Threshold: 255})
	d.Subscribe(c)
	mux := NewSerialMux(port, nil, d)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()
	for _, chunk := range testutil.ChunkBy(stream, 7) {
		port.AddReadData(chunk)
	}
	require.Eventually(t, func() bool {
		return mux.Status().Stats.Delivered == 20
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mux.Close())
	assert.NoError(t, <-done)
	assert.Len(t, c.records, 20)
}
