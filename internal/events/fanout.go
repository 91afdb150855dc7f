package events

import (
	"errors"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
)

// Fanout publishes each event to every sink. All sinks are attempted
// even if an earlier one fails; the errors are joined.
type Fanout struct {
	sinks []interfaces.EventPublisher
}

func NewFanout(sinks ...interfaces.EventPublisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(topic string, event any) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ interfaces.EventPublisher = (*Fanout)(nil)
	_ interfaces.EventPublisher = (*Bus)(nil)
	_ interfaces.EventPublisher = (*LogPublisher)(nil)
)
