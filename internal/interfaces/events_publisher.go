package interfaces

// EventPublisher pushes consumer-facing events. Implementations must be
// safe for concurrent use; callers treat delivery as fire-and-forget.
type EventPublisher interface {
	Publish(topic string, event any) error
}
