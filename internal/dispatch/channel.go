package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// ChannelSubscriber hands records and triggers to consumers running on their
// own goroutines. Sends never block the read loop: when a buffer is full the
// value is dropped and counted.
type ChannelSubscriber struct {
	records  chan thinkgear.Record
	triggers chan Trigger
	dropped  atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewChannelSubscriber returns a subscriber with the given buffer sizes. A
// zero size disables that stream.
func NewChannelSubscriber(recordBuf, triggerBuf int) *ChannelSubscriber {
	c := &ChannelSubscriber{}
	if recordBuf > 0 {
		c.records = make(chan thinkgear.Record, recordBuf)
	}
	if triggerBuf > 0 {
		c.triggers = make(chan Trigger, triggerBuf)
	}
	return c
}

// Records returns the record stream; nil if disabled.
func (c *ChannelSubscriber) Records() <-chan thinkgear.Record { return c.records }

// Triggers returns the trigger stream; nil if disabled.
func (c *ChannelSubscriber) Triggers() <-chan Trigger { return c.triggers }

// Dropped returns the number of values discarded because a buffer was full.
func (c *ChannelSubscriber) Dropped() uint64 { return c.dropped.Load() }

func (c *ChannelSubscriber) OnRecord(r thinkgear.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.records == nil {
		return nil
	}
	select {
	case c.records <- r:
	default:
		c.dropped.Add(1)
	}
	return nil
}

func (c *ChannelSubscriber) OnTrigger(t Trigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.triggers == nil {
		return nil
	}
	select {
	case c.triggers <- t:
	default:
		c.dropped.Add(1)
	}
	return nil
}

// Close closes both channels so readers unblock. Later sends are ignored.
func (c *ChannelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.records != nil {
		close(c.records)
	}
	if c.triggers != nil {
		close(c.triggers)
	}
}
