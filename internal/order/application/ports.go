package application

import (
	"context"
	"time"

	invapp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

// OrderRepository is the durable order store. Methods called inside WithTx
// take part in its transaction.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (invdomain.Event, error)
}

// StockStore keeps the durable remaining count per ticket type.
type StockStore interface {
	Reserve(ctx context.Context, eventID, ticketType string, qty int) error
	Restore(ctx context.Context, eventID, ticketType string, qty int) error
}

type Availability interface {
	GetAvailable(ctx context.Context, eventID, ticketType string) (int, error)
	Decrement(ctx context.Context, eventID, ticketType string, n int) error
	Increment(ctx context.Context, eventID, ticketType string, n int) error
	Invalidate(ctx context.Context, eventID, ticketType string) error
}

type Locker = invapp.Locker

type Publisher interface {
	PublishOrderCreated(ctx context.Context, ev domain.OrderCreated) error
}

// DeliveryGaps parks events whose publish failed for later redelivery.
type DeliveryGaps interface {
	ParkOrderCreated(ctx context.Context, ev domain.OrderCreated) error
}

// ExpirationMarker records pending orders awaiting settlement.
type ExpirationMarker interface {
	Set(ctx context.Context, orderID string, ttl time.Duration) error
	Clear(ctx context.Context, orderID string) error
}
