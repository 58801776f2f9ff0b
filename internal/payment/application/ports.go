package application

import (
	"context"

	orderapp "github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
)

// Lifecycle moves an order to its terminal status. Both calls are no-ops on
// terminal orders.
type Lifecycle interface {
	MarkPaid(ctx context.Context, orderID string) (orderapp.Transition, error)
	Cancel(ctx context.Context, orderID string) (orderapp.Transition, error)
}
