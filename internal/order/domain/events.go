package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	OrderCreatedTopic = "order-created"
	OrderCreatedType  = "OrderCreated"
)

// OrderCreated is the wire snapshot of an order at creation time.
type OrderCreated struct {
	ID          string       `json:"id"`
	EventID     string       `json:"eventId"`
	UserID      string       `json:"userId"`
	Tickets     []TicketLine `json:"tickets"`
	TotalAmount int64        `json:"totalAmount"`
	Status      OrderStatus  `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

type TicketLine struct {
	Type      string `json:"type"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

func NewOrderCreated(o Order) OrderCreated {
	tickets := make([]TicketLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		tickets = append(tickets, TicketLine(l))
	}
	return OrderCreated{
		ID:          o.ID,
		EventID:     o.EventID,
		UserID:      o.UserID,
		Tickets:     tickets,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		ExpiresAt:   o.ExpiresAt,
	}
}

// ParseOrderCreated decodes a message payload. Any payload that does not
// identify an order is reported as ErrMalformedMessage.
func ParseOrderCreated(payload []byte) (OrderCreated, error) {
	var ev OrderCreated
	if err := json.Unmarshal(payload, &ev); err != nil {
		return OrderCreated{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if ev.ID == "" {
		return OrderCreated{}, fmt.Errorf("%w: missing order id", ErrMalformedMessage)
	}
	return ev, nil
}
