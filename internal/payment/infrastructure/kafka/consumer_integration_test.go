//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderapp "github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	orderdomain "github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	orderkafka "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/testutil"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/idempotency"
)

type settled struct {
	mu  sync.Mutex
	ids []string
}

func (s *settled) Settle(_ context.Context, ev orderdomain.OrderCreated) (application.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ev.ID)
	return application.Outcome{Decision: domain.Approve, Transition: orderapp.TransitionApplied}, nil
}

func (s *settled) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func TestConsumer_EndToEnd(t *testing.T) {
	brokers := testutil.Kafka(t)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	writer := orderkafka.NewWriter(brokers)
	t.Cleanup(func() { _ = writer.Close() })
	pub := orderkafka.NewPublisher(writer, orderdomain.OrderCreatedTopic, "booking-service")

	for _, id := range []string{"order-1", "order-2", "order-1"} {
		require.NoError(t, pub.PublishOrderCreated(ctx, orderdomain.OrderCreated{ID: id, Status: orderdomain.StatusPending}))
	}

	svc := &settled{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := NewReader(brokers, orderdomain.OrderCreatedTopic, "payment-processing-group")
	cons := NewConsumer(log, reader, svc, idempotency.NewStore(rdb, time.Hour))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- cons.Run(runCtx) }()

	require.Eventually(t, func() bool {
		return len(svc.snapshot()) == 2 && mr.Exists("idem:settlement:order-2")
	}, 45*time.Second, 100*time.Millisecond)

	stop()
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, svc.snapshot())
}
