// Serialmux owns the headset's serial port: it runs the single read loop that
// drives handshake detection, frame synchronization and decoding, and hands
// decoded records to a dispatcher for any number of subscribers.
package serialmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/httputil"
	"github.com/banshee-data/mindflex/internal/monitoring"
	"github.com/banshee-data/mindflex/internal/thinkgear"
	"github.com/banshee-data/mindflex/internal/timeutil"
)

// ErrTransport wraps read and write failures on the serial link. These are the
// only errors that terminate Monitor other than context cancellation.
var ErrTransport = errors.New("headset transport failure")

// READ_BUFFER_SIZE bounds a single port read. Bytes are still processed one at
// a time, in order.
const READ_BUFFER_SIZE = 256

// SerialMux runs the headset protocol over a single serial port.
type SerialMux[T SerialPorter] struct {
	port       T
	conn       *Connection
	dispatcher *dispatch.Dispatcher
	clock      timeutil.Clock
	window     *dispatch.Window

	commandMu sync.Mutex
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Monitor reads the port until ctx is done, the port reaches EOF or a
	// transport error occurs.
	Monitor(context.Context) error
	// SendHandshake writes the extended-mode request to the device.
	SendHandshake() error
	// Dispatcher returns the dispatcher decoded records are handed to.
	Dispatcher() *dispatch.Dispatcher
	// Close releases the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux over an already open port.
func NewSerialMux[T SerialPorter](port T, conn *Connection, d *dispatch.Dispatcher) *SerialMux[T] {
	if conn == nil {
		conn = NewConnection("")
	}
	if d == nil {
		d = dispatch.New(dispatch.Options{})
	}
	return &SerialMux[T]{
		port:       port,
		conn:       conn,
		dispatcher: d,
		clock:      timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp handshakes.
func (s *SerialMux[T]) SetClock(c timeutil.Clock) { s.clock = c }

// SetWindow exposes w on the admin routes.
func (s *SerialMux[T]) SetWindow(w *dispatch.Window) { s.window = w }

// Connection returns the state of the open link.
func (s *SerialMux[T]) Connection() *Connection { return s.conn }

// Dispatcher returns the dispatcher decoded records are handed to.
func (s *SerialMux[T]) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// SendHandshake writes the extended-mode request to the device.
func (s *SerialMux[T]) SendHandshake() error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if err := thinkgear.SendHandshake(s.port); err != nil {
		return err
	}
	s.conn.RecordHandshake(s.clock.Now())
	s.dispatcher.Stats().AddHandshake()
	return nil
}

// Monitor runs the read loop. A reader goroutine performs the blocking port
// reads so that context cancellation is observed between reads; every byte is
// then processed sequentially on this goroutine.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		buf := make([]byte, READ_BUFFER_SIZE)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	parser := thinkgear.NewParser()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if s.closing.Load() {
				return nil
			}
			return fmt.Errorf("%w: read: %w", ErrTransport, err)

		case chunk, ok := <-chunks:
			if !ok {
				// the reader may have queued an error before closing
				select {
				case err := <-readErr:
					if !s.closing.Load() {
						return fmt.Errorf("%w: read: %w", ErrTransport, err)
					}
				default:
				}
				return nil
			}
			for _, b := range chunk {
				if err := s.handleByte(parser, b); err != nil {
					return err
				}
			}
		}
	}
}

// handleByte advances the parser by one byte and acts on the resulting event.
func (s *SerialMux[T]) handleByte(parser *thinkgear.Parser, b byte) error {
	stats := s.dispatcher.Stats()
	ev := parser.Feed(b)
	switch ev.Kind {
	case thinkgear.EventHandshake:
		monitoring.Debugf("legacy mode sentinel on %s, requesting extended mode", s.conn.Path)
		if err := s.SendHandshake(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

	case thinkgear.EventFrame:
		stats.AddFrame()
		rec, err := thinkgear.Decode(ev.Frame.Payload)
		if err != nil {
			stats.AddDecodeError()
			monitoring.Debugf("dropping record: %v", err)
			return nil
		}
		monitoring.Debugf("decoded %s from %d-byte frame", rec, ev.Frame.Length)
		s.dispatcher.Dispatch(ev.Frame, rec)

	case thinkgear.EventChecksumError:
		stats.AddChecksumError()
		monitoring.Debugf("dropping frame: %v", ev.Err)

	case thinkgear.EventFramingError:
		stats.AddFramingError()
		monitoring.Debugf("dropping frame: %v", ev.Err)
	}
	return nil
}

// Close releases the port. It is safe to call more than once.
func (s *SerialMux[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// Status is the JSON body of the headset debug route.
type Status struct {
	Connection ConnectionInfo         `json:"connection"`
	Stats      dispatch.StatsSnapshot `json:"stats"`
	Options    StatusOptions          `json:"options"`
}

// StatusOptions reports the dispatcher policy in effect.
type StatusOptions struct {
	Verbose     bool `json:"verbose"`
	Threshold   int  `json:"threshold"`
	Subscribers int  `json:"subscribers"`
}

// Status returns a snapshot of the connection and pipeline counters.
func (s *SerialMux[T]) Status() Status {
	opts := s.dispatcher.Options()
	return Status{
		Connection: s.conn.Info(),
		Stats:      s.dispatcher.Stats().Snapshot(),
		Options: StatusOptions{
			Verbose:     opts.Verbose,
			Threshold:   int(opts.Threshold),
			Subscribers: s.dispatcher.Len(),
		},
	}
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("headset", "headset connection state and frame counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Status())
	})

	// API endpoint to request extended mode manually
	debug.HandleSilentFunc("send-handshake", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		if err := s.SendHandshake(); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to write handshake: %v", err))
			return
		}
		httputil.WriteJSONOK(w, s.conn.Handshake())
	})

	if s.window != nil {
		window := s.window
		debug.HandleFunc("attention", "rolling attention window", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSONOK(w, map[string]any{
				"values":  window.Snapshot(),
				"summary": window.Summary(),
			})
		})
	}

	// API endpoint to issue Server-Side Events (SSE) for each decoded record
	// and trigger.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		serveTail(w, r, s.dispatcher)
	})
}

// serveTail streams records as SSE data events and triggers as "trigger"
// events until the client disconnects or the subscriber is closed.
func serveTail(w http.ResponseWriter, r *http.Request, d *dispatch.Dispatcher) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sub := dispatch.NewChannelSubscriber(64, 16)
	id := d.Subscribe(sub)
	defer func() {
		d.Unsubscribe(id)
		sub.Close()
	}()

	flusher := httputil.StartEventStream(w)
	if flusher == nil {
		return
	}

	records, triggers := sub.Records(), sub.Triggers()
	for {
		var (
			event   string
			payload any
		)
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			payload = rec
		case trig, ok := <-triggers:
			if !ok {
				return
			}
			event, payload = "trigger", trig
		case <-r.Context().Done():
			return
		}

		if err := httputil.WriteEvent(w, event, payload); err != nil {
			monitoring.Debugf("tail: %v", err)
			return
		}
		flusher.Flush()
	}
}
