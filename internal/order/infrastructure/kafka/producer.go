package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/tracing"
)

type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes order-created events keyed by order id, so every event
// of one order lands on the same partition.
type Publisher struct {
	w      MessageWriter
	topic  string
	source string
}

func NewPublisher(w MessageWriter, topic, source string) *Publisher {
	if topic == "" {
		topic = domain.OrderCreatedTopic
	}
	return &Publisher{w: w, topic: topic, source: source}
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev domain.OrderCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order-created: %w", err)
	}
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(domain.OrderCreatedType)},
		{Key: "source", Value: []byte(p.source)},
	}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.ID),
		Value:   payload,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
	}
	return p.w.WriteMessages(ctx, msg)
}
