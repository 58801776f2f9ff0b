package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
)

const DefaultAvailabilityTTL = time.Hour

// Availability is a cache-aside view of per ticket type availability.
// Mutations must be made while holding the event's reservation lock.
type Availability struct {
	log    *slog.Logger
	cache  Cache
	events EventStore
	ttl    time.Duration
}

func NewAvailability(log *slog.Logger, cache Cache, events EventStore, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &Availability{log: log, cache: cache, events: events, ttl: ttl}
}

func (a *Availability) GetAvailable(ctx context.Context, eventID, ticketType string) (int, error) {
	key := domain.AvailabilityKey(eventID, ticketType)
	v, ok, err := a.cache.Get(ctx, key, a.ttl)
	if err != nil {
		return 0, fmt.Errorf("read availability %s: %w", key, err)
	}
	if ok {
		return v, nil
	}

	tt, err := a.ticketType(ctx, eventID, ticketType)
	if err != nil {
		return 0, err
	}
	v, err = a.cache.Populate(ctx, key, tt.Available, a.ttl)
	if err != nil {
		return 0, fmt.Errorf("populate availability %s: %w", key, err)
	}
	a.log.Debug("availability loaded from store", "event_id", eventID, "type", ticketType, "available", v)
	return v, nil
}

func (a *Availability) Decrement(ctx context.Context, eventID, ticketType string, n int) error {
	return a.adjust(ctx, eventID, ticketType, -n, -1)
}

// Increment returns n units to the pool, never past the ticket type's limit.
func (a *Availability) Increment(ctx context.Context, eventID, ticketType string, n int) error {
	tt, err := a.ticketType(ctx, eventID, ticketType)
	if err != nil {
		return err
	}
	return a.adjust(ctx, eventID, ticketType, n, tt.Limit)
}

// Invalidate drops the cached counter so the next read reloads it from the store.
func (a *Availability) Invalidate(ctx context.Context, eventID, ticketType string) error {
	return a.cache.Delete(ctx, domain.AvailabilityKey(eventID, ticketType))
}

func (a *Availability) adjust(ctx context.Context, eventID, ticketType string, delta, max int) error {
	key := domain.AvailabilityKey(eventID, ticketType)
	res, err := a.cache.Adjust(ctx, key, delta, max)
	if err != nil {
		return fmt.Errorf("adjust availability %s: %w", key, err)
	}
	if res == Refused {
		a.log.Warn("availability out of bounds, invalidating", "event_id", eventID, "type", ticketType, "delta", delta)
		return a.cache.Delete(ctx, key)
	}
	return nil
}

func (a *Availability) ticketType(ctx context.Context, eventID, ticketType string) (domain.TicketType, error) {
	ev, err := a.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.TicketType{}, err
	}
	tt, ok := ev.TicketType(ticketType)
	if !ok {
		return domain.TicketType{}, fmt.Errorf("%w: %s", domain.ErrTicketTypeNotFound, ticketType)
	}
	return tt, nil
}
