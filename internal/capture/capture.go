// Package capture records the raw byte stream read from the headset and plays
// it back. Captures are zstd streams of exactly the bytes the port returned,
// so a replay drives the synchronizer through the same splits and noise.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/mindflex/internal/monitoring"
	"github.com/banshee-data/mindflex/internal/serialmux"
)

// ErrClosed is returned by writes to a closed Writer.
var ErrClosed = errors.New("capture closed")

// Writer appends raw bytes to a zstd-compressed capture.
type Writer struct {
	mu     sync.Mutex
	enc    *zstd.Encoder
	out    io.Closer
	n      int64
	closed bool
}

// Create starts a new capture file at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.out = f
	return w, nil
}

// NewWriter compresses the capture into dst. Closing the Writer does not close
// dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return &Writer{enc: enc}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	n, err := w.enc.Write(p)
	w.n += int64(n)
	return n, err
}

// Len reports the number of uncompressed bytes captured.
func (w *Writer) Len() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close flushes the zstd frame and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.enc.Close()
	if w.out != nil {
		err = errors.Join(err, w.out.Close())
	}
	return err
}

// TeePort copies every byte read from a port into a capture.
type TeePort struct {
	serialmux.SerialPorter
	w *Writer

	once sync.Once
}

// Tee wraps port so reads are also written to w. A capture failure is logged
// once and stops the capture; it never interrupts the read loop.
func Tee(port serialmux.SerialPorter, w *Writer) *TeePort {
	return &TeePort{SerialPorter: port, w: w}
}

func (t *TeePort) Read(p []byte) (int, error) {
	n, err := t.SerialPorter.Read(p)
	if n > 0 && t.w != nil {
		if _, werr := t.w.Write(p[:n]); werr != nil {
			t.once.Do(func() {
				monitoring.Logf("capture stopped: %v", werr)
			})
		}
	}
	return n, err
}

// ReplayPort is a SerialPorter that reads a capture back. Writes are kept in
// memory so handshakes can be inspected.
type ReplayPort struct {
	dec *zstd.Decoder
	src io.Closer

	mu      sync.Mutex
	written bytes.Buffer
	release sync.Once
}

// Open replays the capture at path.
func Open(path string) (*ReplayPort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	p, err := NewReplay(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.src = f
	return p, nil
}

// NewReplay replays a capture read from src.
func NewReplay(src io.Reader) (*ReplayPort, error) {
	// synchronous decoding keeps Read on the caller's goroutine, so Close
	// can interrupt it by closing the file
	dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ReplayPort{dec: dec}, nil
}

func (r *ReplayPort) Read(p []byte) (int, error) {
	n, err := r.dec.Read(p)
	if err != nil {
		r.release.Do(r.dec.Close)
	}
	return n, err
}

func (r *ReplayPort) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written.Write(p)
}

// Written returns everything written to the port.
func (r *ReplayPort) Written() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.written.Bytes()...)
}

// Close closes the capture file. A Read blocked on the file fails and
// releases the decoder.
func (r *ReplayPort) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}
