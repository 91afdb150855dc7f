package events

import "github.com/rs/zerolog"

// LogPublisher writes every event to the structured log. It is the
// always-on consumer even when no UI or broker is attached.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(topic string, event any) error {
	p.log.Info().Str("topic", topic).Interface("event", event).Msg("event")
	return nil
}
