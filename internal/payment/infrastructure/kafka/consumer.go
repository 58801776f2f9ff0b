package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/application"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/idempotency"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/metrics"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/tracing"
)

const idempotencyScope = "settlement"

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Settler interface {
	Settle(ctx context.Context, ev orderdomain.OrderCreated) (application.Outcome, error)
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
}

// Consumer settles order-created events one at a time. An offset is
// committed only once its message was handled or deemed unprocessable, so
// the broker redelivers anything in flight when the process stops.
type Consumer struct {
	log         *slog.Logger
	reader      MessageReader
	svc         Settler
	idem        *idempotency.Store
	tracer      trace.Tracer
	initialWait time.Duration
	maxWait     time.Duration
}

type Option func(*Consumer)

// WithBackoff bounds the wait between retries of a failing message.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Consumer) {
		if initial > 0 {
			c.initialWait = initial
		}
		if max > 0 {
			c.maxWait = max
		}
	}
}

func NewConsumer(log *slog.Logger, reader MessageReader, svc Settler, idem *idempotency.Store, opts ...Option) *Consumer {
	c := &Consumer{
		log:         log,
		reader:      reader,
		svc:         svc,
		idem:        idem,
		tracer:      otel.Tracer("payment-consumer"),
		initialWait: 200 * time.Millisecond,
		maxWait:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("settlement consumer stopping")
				return nil
			}
			return err
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.log.Info("settlement consumer stopping, message left uncommitted", "offset", msg.Offset)
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
	}
}

// handle returns nil when msg may be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := orderdomain.ParseOrderCreated(msg.Value)
	if err != nil {
		metrics.MalformedMessagesTotal.Inc()
		c.log.Error("skipping malformed message", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated", trace.WithAttributes(
		attribute.String("order.id", ev.ID),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	))
	defer span.End()

	key := c.idem.Key(idempotencyScope, ev.ID)
	seen, err := c.idem.Seen(msgCtx, key)
	if err != nil {
		c.log.Warn("idempotency check failed, settling anyway", "order_id", ev.ID, "err", err)
	}
	if seen {
		c.log.Info("duplicate order-created skipped", "order_id", ev.ID)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialWait
	b.MaxInterval = c.maxWait
	b.MaxElapsedTime = 0

	err = backoff.RetryNotify(func() error {
		_, err := c.svc.Settle(msgCtx, ev)
		if errors.Is(err, orderdomain.ErrOrderNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.log.Warn("settlement failed, retrying", "order_id", ev.ID, "wait", wait, "err", err)
	})
	switch {
	case errors.Is(err, orderdomain.ErrOrderNotFound):
		c.log.Error("order-created for unknown order, skipping", "order_id", ev.ID)
		return nil
	case err != nil:
		span.RecordError(err)
		return err
	}

	if _, err := c.idem.MarkDone(msgCtx, key); err != nil {
		c.log.Warn("idempotency record not written", "order_id", ev.ID, "err", err)
	}
	return nil
}
