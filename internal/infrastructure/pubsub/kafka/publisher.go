package kafkapubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes transfer events to a kafka topic, keyed by transfer id
// so that all events of a transfer land in the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) <= 0 {
		return nil, fmt.Errorf("missing kafka brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("missing kafka topic")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer, topic), nil
}

func newPublisher(writer messageWriter, topic string) *Publisher {
	return &Publisher{writer, topic}
}

func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) PublishTransferEvent(
	ctx context.Context, event ports.TransferEvent,
) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TransferID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
