package application

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	orderapp "github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	orderdomain "github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/metrics"
)

type Outcome struct {
	Decision   domain.Decision
	Transition orderapp.Transition
}

type Service struct {
	log       *slog.Logger
	decider   domain.PaymentDecider
	lifecycle Lifecycle
	tracer    trace.Tracer
}

func NewService(log *slog.Logger, decider domain.PaymentDecider, lifecycle Lifecycle) *Service {
	return &Service{
		log:       log,
		decider:   decider,
		lifecycle: lifecycle,
		tracer:    otel.Tracer("payment-service"),
	}
}

// Settle decides the payment for a newly created order and applies the
// matching status transition. A declined payment cancels the order and
// returns its tickets.
func (s *Service) Settle(ctx context.Context, ev orderdomain.OrderCreated) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "Settle", trace.WithAttributes(attribute.String("order.id", ev.ID)))
	defer span.End()

	decision := s.decider.Decide(ctx, ev)
	span.SetAttributes(attribute.String("payment.decision", string(decision)))

	var (
		tr  orderapp.Transition
		err error
	)
	if decision == domain.Approve {
		tr, err = s.lifecycle.MarkPaid(ctx, ev.ID)
	} else {
		tr, err = s.lifecycle.Cancel(ctx, ev.ID)
	}
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	metrics.SettlementsTotal.WithLabelValues(string(decision), string(tr)).Inc()
	s.log.Info("payment settled", "order_id", ev.ID, "decision", decision, "transition", tr, "total_amount", ev.TotalAmount)
	return Outcome{Decision: decision, Transition: tr}, nil
}
