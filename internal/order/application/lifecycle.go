package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

// Transition tells whether a lifecycle call changed the order.
type Transition string

const (
	TransitionApplied Transition = "applied"
	// TransitionNoop means the order was already terminal.
	TransitionNoop Transition = "noop"
)

// MarkPaid settles a pending order. Calling it on a terminal order is a no-op.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (Transition, error) {
	ctx, span := s.tracer.Start(ctx, "MarkPaid")
	defer span.End()

	tr := TransitionNoop
	err := s.orders.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanTransitionTo(domain.StatusPaid) {
			s.log.Info("order already terminal, paid ignored", "order_id", orderID, "status", o.Status)
			return nil
		}
		if err := s.orders.UpdateStatus(ctx, orderID, domain.StatusPaid, s.clock.Now()); err != nil {
			return err
		}
		tr = TransitionApplied
		return nil
	})
	if err != nil {
		return "", lifecycleError("mark paid", err)
	}

	if tr == TransitionApplied {
		s.clearMarker(ctx, orderID)
		s.log.Info("order paid", "order_id", orderID)
	}
	return tr, nil
}

// Cancel cancels a pending order and returns its tickets to the pool, in
// the store within the status transaction and in the cache after commit.
// Calling it on a terminal order is a no-op and restores nothing.
func (s *Service) Cancel(ctx context.Context, orderID string) (Transition, error) {
	ctx, span := s.tracer.Start(ctx, "Cancel")
	defer span.End()

	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", lifecycleError("cancel", err)
	}
	if current.Status.Terminal() {
		return TransitionNoop, nil
	}

	lock, err := s.locker.Acquire(ctx, current.EventID)
	if err != nil {
		return "", err
	}
	defer s.release(ctx, lock, current.EventID)

	tr := TransitionNoop
	var cancelled domain.Order
	err = s.orders.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanTransitionTo(domain.StatusCancelled) {
			return nil
		}
		if err := s.orders.UpdateStatus(ctx, orderID, domain.StatusCancelled, s.clock.Now()); err != nil {
			return err
		}
		for _, l := range o.Lines {
			if err := s.stock.Restore(ctx, o.EventID, l.Type, l.Quantity); err != nil {
				return err
			}
		}
		cancelled = o
		tr = TransitionApplied
		return nil
	})
	if err != nil {
		return "", lifecycleError("cancel", err)
	}
	if tr == TransitionNoop {
		return tr, nil
	}

	for _, l := range cancelled.Lines {
		if err := s.availability.Increment(ctx, cancelled.EventID, l.Type, l.Quantity); err != nil {
			s.log.Warn("availability restore failed", "order_id", orderID, "type", l.Type, "err", err)
			s.invalidateLine(ctx, cancelled.EventID, l.Type)
		}
	}
	s.clearMarker(ctx, orderID)
	s.log.Info("order cancelled", "order_id", orderID, "event_id", cancelled.EventID)
	return tr, nil
}

func (s *Service) clearMarker(ctx context.Context, orderID string) {
	if err := s.markers.Clear(ctx, orderID); err != nil {
		s.log.Warn("expiration marker not cleared", "order_id", orderID, "err", err)
	}
}

func lifecycleError(op string, err error) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
