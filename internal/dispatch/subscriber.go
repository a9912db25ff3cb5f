// Package dispatch forwards decoded headset records to subscribers and raises
// trigger events when attention crosses a configured threshold.
package dispatch

import (
	"fmt"
	"time"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// Trigger is raised once per decoded record whose attention meets the threshold.
type Trigger struct {
	Attention uint8     `json:"attention"`
	Threshold uint8     `json:"threshold"`
	At        time.Time `json:"at"`
}

func (t Trigger) String() string {
	return fmt.Sprintf("attention %d >= %d at %s", t.Attention, t.Threshold, t.At.Format(time.RFC3339Nano))
}

// Subscriber consumes records and trigger events. Returned errors are logged
// by the dispatcher and never interrupt the read loop.
type Subscriber interface {
	OnRecord(thinkgear.Record) error
	OnTrigger(Trigger) error
}

// Funcs adapts plain functions to Subscriber. Nil members are ignored.
type Funcs struct {
	Record  func(thinkgear.Record) error
	Trigger func(Trigger) error
}

func (f Funcs) OnRecord(r thinkgear.Record) error {
	if f.Record == nil {
		return nil
	}
	return f.Record(r)
}

func (f Funcs) OnTrigger(t Trigger) error {
	if f.Trigger == nil {
		return nil
	}
	return f.Trigger(t)
}
