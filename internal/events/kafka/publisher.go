// Package kafka mirrors the peer's consumer events onto a Kafka topic
// so external systems can follow balance changes without speaking the
// peer's wire protocol. Optional; enabled by configuring brokers.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
)

// writeTimeout bounds each broker write; an unreachable broker must
// fail the publish, never hang the publisher's caller.
const writeTimeout = 10 * time.Second

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: writeTimeout,
		},
	}
}

// Publish writes the event as JSON, keyed by its event topic so
// consumers can filter on the key.
func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	return p.writer.WriteMessages(
		ctx,
		kafka.Message{
			Key:   []byte(topic),
			Value: data,
		},
	)
}

func (p *Publisher) Close() error { return p.writer.Close() }

var _ interfaces.EventPublisher = (*Publisher)(nil)
