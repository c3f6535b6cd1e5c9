package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
)

// keyed events choose their partition key; all events of one ledger land on
// one partition so consumers see them in order.
type keyed interface {
	Key() string
}

type Publisher struct {
	writer *kafka.Writer
	logger *log.Logger
}

// NewPublisher writes every event to one topic; the event type travels in
// the event-type header.
func NewPublisher(brokers []string, topic string, logger *log.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, event any) error {
	msg, err := message(eventType, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "kafka write failed",
			log.FieldTopic, p.writer.Topic, "event_type", eventType, log.FieldError, err)
		return fmt.Errorf("write %s to %s: %w", eventType, p.writer.Topic, err)
	}
	p.logger.DebugContext(ctx, "event published", log.FieldTopic, p.writer.Topic, "event_type", eventType)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(eventType string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if k, ok := event.(keyed); ok {
		msg.Key = []byte(k.Key())
	}
	return msg, nil
}
