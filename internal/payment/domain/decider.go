package domain

import (
	"context"
	"math/rand/v2"

	orderdomain "github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

type Decision string

const (
	Approve Decision = "approve"
	Decline Decision = "decline"
)

// PaymentDecider settles an order one way or the other. Implementations
// must be safe for concurrent use.
type PaymentDecider interface {
	Decide(ctx context.Context, ev orderdomain.OrderCreated) Decision
}

// Always returns the same decision for every order.
type Always Decision

func (a Always) Decide(context.Context, orderdomain.OrderCreated) Decision {
	return Decision(a)
}

// Random approves a fixed share of orders.
type Random struct {
	approveRate float64
	float       func() float64
}

// DefaultApproveRate is the share of orders the mock gateway approves.
const DefaultApproveRate = 0.8

func NewRandom(approveRate float64) *Random {
	if approveRate < 0 || approveRate > 1 {
		approveRate = DefaultApproveRate
	}
	return &Random{approveRate: approveRate, float: rand.Float64}
}

func (r *Random) Decide(context.Context, orderdomain.OrderCreated) Decision {
	if r.float() < r.approveRate {
		return Approve
	}
	return Decline
}
