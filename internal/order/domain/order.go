package domain

import (
	"time"

	"github.com/samber/lo"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// DefaultHoldWindow is how long a pending order keeps its tickets reserved.
const DefaultHoldWindow = 15 * time.Minute

func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

type Order struct {
	ID          string
	EventID     string
	UserID      string
	Lines       []Line
	TotalAmount int64
	Status      OrderStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type Line struct {
	Type      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// NewOrder prices lines and returns a pending order held until now+hold.
func NewOrder(id, eventID, userID string, lines []Line, now time.Time, hold time.Duration) Order {
	priced := lo.Map(lines, func(l Line, _ int) Line {
		l.LineTotal = l.UnitPrice * int64(l.Quantity)
		return l
	})
	return Order{
		ID:          id,
		EventID:     eventID,
		UserID:      userID,
		Lines:       priced,
		TotalAmount: lo.SumBy(priced, func(l Line) int64 { return l.LineTotal }),
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(hold),
	}
}

// CanTransitionTo reports whether the status may move to next. Only
// pending orders move, and only to a terminal status.
func (o Order) CanTransitionTo(next OrderStatus) bool {
	return o.Status == StatusPending && next.Terminal()
}
