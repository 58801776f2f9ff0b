package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
)

// Cache stores integer availability counters.
type Cache interface {
	// Get returns the counter and refreshes its TTL. ok is false on a miss.
	Get(ctx context.Context, key string, ttl time.Duration) (value int, ok bool, err error)
	// Populate sets key to value unless it already exists, returning the stored counter.
	Populate(ctx context.Context, key string, value int, ttl time.Duration) (int, error)
	// Adjust adds delta to an existing counter. A result below zero or above
	// max is refused. Missing keys are left untouched.
	Adjust(ctx context.Context, key string, delta, max int) (AdjustResult, error)
	Delete(ctx context.Context, key string) error
}

type AdjustResult int

const (
	Adjusted AdjustResult = iota
	Missing
	Refused
)

type EventStore interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
}

// Locker grants mutual exclusion over one event.
type Locker interface {
	Acquire(ctx context.Context, eventID string) (Lock, error)
}

// Lock is a held reservation lock. Release is idempotent.
type Lock interface {
	Release(ctx context.Context) error
	// Extend renews the validity window; it fails if the lock was lost.
	Extend(ctx context.Context) error
	Valid(now time.Time) bool
}
