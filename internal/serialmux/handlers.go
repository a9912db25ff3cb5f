package serialmux

import (
	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/monitoring"
	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// LogSubscriber prints every delivered record and trigger. It is attached in
// debug mode.
type LogSubscriber struct{}

func (LogSubscriber) OnRecord(r thinkgear.Record) error {
	monitoring.Logf("Record: %s", r)
	return nil
}

func (LogSubscriber) OnTrigger(t dispatch.Trigger) error {
	monitoring.Logf("Trigger: %s", t)
	return nil
}

var _ dispatch.Subscriber = LogSubscriber{}
