package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	invapp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/clock"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/metrics"
)

type Deps struct {
	Orders       OrderRepository
	Events       EventReader
	Stock        StockStore
	Availability Availability
	Locker       Locker
	Publisher    Publisher
	Gaps         DeliveryGaps
	Markers      ExpirationMarker
}

// Service books orders and drives them to a terminal status.
type Service struct {
	log          *slog.Logger
	orders       OrderRepository
	events       EventReader
	stock        StockStore
	availability Availability
	locker       Locker
	publisher    Publisher
	gaps         DeliveryGaps
	markers      ExpirationMarker
	clock        clock.Clock
	holdWindow   time.Duration
	newID        func() string
	tracer       trace.Tracer
}

type Option func(*Service)

func WithHoldWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdWindow = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(log *slog.Logger, deps Deps, opts ...Option) *Service {
	s := &Service{
		log:          log,
		orders:       deps.Orders,
		events:       deps.Events,
		stock:        deps.Stock,
		availability: deps.Availability,
		locker:       deps.Locker,
		publisher:    deps.Publisher,
		gaps:         deps.Gaps,
		markers:      deps.Markers,
		clock:        clock.NewSystem(),
		holdWindow:   domain.DefaultHoldWindow,
		newID:        uuid.NewString,
		tracer:       otel.Tracer("order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type TicketRequest struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type BookRequest struct {
	EventID string          `json:"eventId"`
	UserID  string          `json:"userId"`
	Tickets []TicketRequest `json:"tickets"`
}

func (r BookRequest) Validate() error {
	if r.EventID == "" || r.UserID == "" {
		return fmt.Errorf("%w: eventId and userId are required", domain.ErrInvalidRequest)
	}
	if len(r.Tickets) == 0 {
		return fmt.Errorf("%w: no tickets requested", domain.ErrInvalidRequest)
	}
	for _, t := range r.Tickets {
		if t.Type == "" || t.Quantity <= 0 {
			return fmt.Errorf("%w: ticket %q quantity %d", domain.ErrInvalidRequest, t.Type, t.Quantity)
		}
	}
	return nil
}

// Book reserves the requested tickets and creates a pending order. All
// availability checks and cache writes for the event happen under its
// reservation lock; nothing is reserved unless every line fits.
func (s *Service) Book(ctx context.Context, req BookRequest) (_ domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "Book", trace.WithAttributes(attribute.String("event.id", req.EventID)))
	defer func() {
		metrics.BookingsTotal.WithLabelValues(bookingResult(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}
	wanted := mergeTickets(req.Tickets)

	lock, err := s.locker.Acquire(ctx, req.EventID)
	if err != nil {
		metrics.LockFailuresTotal.Inc()
		return domain.Order{}, err
	}
	defer s.release(ctx, lock, req.EventID)

	ev, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return domain.Order{}, err
	}

	lines := make([]domain.Line, 0, len(wanted))
	for _, t := range wanted {
		tt, ok := ev.TicketType(t.Type)
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", invdomain.ErrTicketTypeNotFound, t.Type)
		}
		available, err := s.availability.GetAvailable(ctx, req.EventID, t.Type)
		if err != nil {
			return domain.Order{}, err
		}
		if available < t.Quantity {
			return domain.Order{}, &invdomain.InsufficientInventoryError{Type: t.Type, Available: available}
		}
		lines = append(lines, domain.Line{Type: t.Type, Quantity: t.Quantity, UnitPrice: tt.UnitPrice})
	}

	order := domain.NewOrder(s.newID(), req.EventID, req.UserID, lines, s.clock.Now(), s.holdWindow)

	// Re-arm the lock so its validity covers the durable write.
	if err := lock.Extend(ctx); err != nil {
		metrics.LockFailuresTotal.Inc()
		return domain.Order{}, err
	}

	err = s.orders.WithTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		for _, l := range order.Lines {
			if err := s.stock.Reserve(ctx, order.EventID, l.Type, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, invdomain.ErrInsufficientInventory) {
			// The cache was ahead of the store; reload it on the next read.
			s.invalidate(ctx, order)
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: create order: %w", domain.ErrPersistence, err)
	}

	for _, l := range order.Lines {
		if err := s.availability.Decrement(ctx, order.EventID, l.Type, l.Quantity); err != nil {
			s.log.Warn("availability decrement failed", "order_id", order.ID, "type", l.Type, "err", err)
			s.invalidateLine(ctx, order.EventID, l.Type)
		}
	}

	s.publish(ctx, order)

	if err := s.markers.Set(ctx, order.ID, s.holdWindow); err != nil {
		s.log.Warn("expiration marker not set", "order_id", order.ID, "err", err)
	}

	s.log.Info("order booked", "order_id", order.ID, "event_id", order.EventID, "user_id", order.UserID, "total_amount", order.TotalAmount)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// publish emits order-created. A failure after commit is not rolled back:
// the event is parked for the outbox relay and the order stays pending.
func (s *Service) publish(ctx context.Context, order domain.Order) {
	ev := domain.NewOrderCreated(order)
	err := s.publisher.PublishOrderCreated(ctx, ev)
	if err == nil {
		return
	}

	metrics.DeliveryGapsTotal.Inc()
	s.log.Error("order-created publish failed", "order_id", order.ID, "err", fmt.Errorf("%w: %w", domain.ErrDeliveryGap, err))
	if s.gaps == nil {
		return
	}
	if err := s.gaps.ParkOrderCreated(ctx, ev); err != nil {
		s.log.Error("order-created not parked, relying on expiry sweep", "order_id", order.ID, "err", err)
	}
}

func (s *Service) release(ctx context.Context, lock invapp.Lock, eventID string) {
	if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("reservation lock release failed", "event_id", eventID, "err", err)
	}
}

func (s *Service) invalidate(ctx context.Context, order domain.Order) {
	for _, l := range order.Lines {
		s.invalidateLine(ctx, order.EventID, l.Type)
	}
}

func (s *Service) invalidateLine(ctx context.Context, eventID, ticketType string) {
	if err := s.availability.Invalidate(ctx, eventID, ticketType); err != nil {
		s.log.Error("availability invalidate failed", "event_id", eventID, "type", ticketType, "err", err)
	}
}

// mergeTickets folds repeated ticket types into one line, keeping first-seen order.
func mergeTickets(tickets []TicketRequest) []TicketRequest {
	out := make([]TicketRequest, 0, len(tickets))
	index := make(map[string]int, len(tickets))
	for _, t := range tickets {
		if i, ok := index[t.Type]; ok {
			out[i].Quantity += t.Quantity
			continue
		}
		index[t.Type] = len(out)
		out = append(out, t)
	}
	return out
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, invdomain.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, invdomain.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, invdomain.ErrEventNotFound), errors.Is(err, invdomain.ErrTicketTypeNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
