package dispatch

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/mindflex/internal/monitoring"
	"github.com/banshee-data/mindflex/internal/thinkgear"
	"github.com/banshee-data/mindflex/internal/timeutil"
)

// HEARTBEAT_FRAME_LEN is the largest declared frame length suppressed outside
// verbose mode. Short frames on this device are mostly quality-only heartbeats.
// This is a delivery policy, not a protocol rule: it also hides short
// meditation-only or attention-only updates.
const HEARTBEAT_FRAME_LEN = 4

// Options configures a Dispatcher.
type Options struct {
	// Verbose forwards every decoded record, including heartbeat frames.
	Verbose bool
	// Threshold is the attention value at or above which a Trigger is raised.
	Threshold uint8
	// Clock stamps triggers; RealClock when nil.
	Clock timeutil.Clock
}

type subscription struct {
	id  string
	sub Subscriber
}

// Dispatcher fans decoded records out to subscribers in registration order.
// Dispatch is called from the single read loop; Subscribe and Unsubscribe may
// be called from any goroutine.
type Dispatcher struct {
	opts  Options
	stats *Stats

	mu   sync.Mutex
	subs []subscription
}

// New returns a Dispatcher with no subscribers.
func New(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Dispatcher{opts: opts, stats: &Stats{}}
}

// Stats returns the pipeline counters shared with the read loop.
func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Options returns the dispatcher configuration.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Subscribe registers s and returns an id for Unsubscribe.
func (d *Dispatcher) Subscribe(s Subscriber) string {
	id := uuid.NewString()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscription{id: id, sub: s})
	return id
}

// Unsubscribe removes the subscriber registered under id.
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered subscribers.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (d *Dispatcher) snapshot() []subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]subscription(nil), d.subs...)
}

// ShouldDeliver reports whether a record decoded from a frame of the given
// declared length passes the delivery policy.
func (d *Dispatcher) ShouldDeliver(frameLength int, rec thinkgear.Record) bool {
	if d.opts.Verbose {
		return true
	}
	return frameLength > HEARTBEAT_FRAME_LEN && !rec.Trivial()
}

// Dispatch evaluates the trigger condition and then delivers rec to every
// subscriber if it passes the delivery policy. The trigger is independent of
// delivery: a qualifying record raises exactly one Trigger either way.
func (d *Dispatcher) Dispatch(frame thinkgear.Frame, rec thinkgear.Record) {
	subs := d.snapshot()

	if rec.Has(thinkgear.FieldAttention) && rec.Attention >= d.opts.Threshold {
		trig := Trigger{Attention: rec.Attention, Threshold: d.opts.Threshold, At: d.opts.Clock.Now()}
		d.stats.triggers.Add(1)
		for _, s := range subs {
			d.call(s.id, "trigger", func() error { return s.sub.OnTrigger(trig) })
		}
	}

	if !d.ShouldDeliver(frame.Length, rec) {
		d.stats.filtered.Add(1)
		return
	}
	d.stats.delivered.Add(1)
	for _, s := range subs {
		d.call(s.id, "record", func() error { return s.sub.OnRecord(rec) })
	}
}

// call runs one subscriber callback, converting panics to errors.
func (d *Dispatcher) call(id, kind string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		d.stats.subscriberFailures.Add(1)
		monitoring.Logf("subscriber %s failed handling %s: %v", id, kind, err)
	}
}
