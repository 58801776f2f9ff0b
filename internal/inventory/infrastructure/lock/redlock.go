package lock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
)

const (
	DefaultTTL         = 10 * time.Second
	DefaultRetryCount  = 10
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultRetryJitter = 200 * time.Millisecond
	DefaultDriftFactor = 0.01
)

// Locker implements Redlock over independent Redis nodes. A lock is held
// once a majority of nodes granted it within the drift-compensated window.
type Locker struct {
	log    *slog.Logger
	rs     *redsync.Redsync
	ttl    time.Duration
	tries  int
	delay  time.Duration
	jitter time.Duration
	drift  float64
}

type Option func(*Locker)

func WithTTL(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithRetry sets how many times acquisition is retried after the first
// attempt and the delay between attempts. jitter adds up to that much
// random delay on top.
func WithRetry(count int, delay, jitter time.Duration) Option {
	return func(l *Locker) {
		if count >= 0 {
			l.tries = count + 1
		}
		if delay >= 0 {
			l.delay = delay
		}
		if jitter >= 0 {
			l.jitter = jitter
		}
	}
}

func New(log *slog.Logger, clients []goredislib.UniversalClient, opts ...Option) *Locker {
	pools := make([]redsyncredis.Pool, 0, len(clients))
	for _, c := range clients {
		pools = append(pools, goredis.NewPool(c))
	}
	l := &Locker{
		log:    log,
		rs:     redsync.New(pools...),
		ttl:    DefaultTTL,
		tries:  DefaultRetryCount + 1,
		delay:  DefaultRetryDelay,
		jitter: DefaultRetryJitter,
		drift:  DefaultDriftFactor,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) retryDelay(int) time.Duration {
	if l.jitter <= 0 {
		return l.delay
	}
	return l.delay + rand.N(l.jitter)
}

// Acquire takes the reservation lock of eventID, failing with
// domain.ErrLockUnavailable once the retry budget or ctx is exhausted.
func (l *Locker) Acquire(ctx context.Context, eventID string) (application.Lock, error) {
	mu := l.rs.NewMutex(domain.LockKey(eventID),
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelayFunc(l.retryDelay),
		redsync.WithDriftFactor(l.drift),
	)
	if err := mu.LockContext(ctx); err != nil {
		l.log.Warn("reservation lock unavailable", "event_id", eventID, "err", err)
		return nil, fmt.Errorf("%w: event %s: %v", domain.ErrLockUnavailable, eventID, err)
	}
	return &Lock{log: l.log, eventID: eventID, mu: mu}, nil
}

type Lock struct {
	log      *slog.Logger
	eventID  string
	mu       *redsync.Mutex
	released atomic.Bool
}

func (l *Lock) Release(ctx context.Context) error {
	if l.released.Swap(true) {
		return nil
	}
	ok, err := l.mu.UnlockContext(ctx)
	if err != nil {
		// The key still expires on its own.
		l.log.Warn("reservation lock release failed", "event_id", l.eventID, "err", err)
		return fmt.Errorf("release lock for event %s: %w", l.eventID, err)
	}
	if !ok {
		l.log.Warn("reservation lock already expired at release", "event_id", l.eventID)
	}
	return nil
}

func (l *Lock) Extend(ctx context.Context) error {
	if l.released.Load() {
		return fmt.Errorf("%w: event %s: already released", domain.ErrLockUnavailable, l.eventID)
	}
	ok, err := l.mu.ExtendContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: event %s: extend: %v", domain.ErrLockUnavailable, l.eventID, err)
	}
	if !ok {
		return fmt.Errorf("%w: event %s: lock lost", domain.ErrLockUnavailable, l.eventID)
	}
	return nil
}

func (l *Lock) Valid(now time.Time) bool {
	return !l.released.Load() && now.Before(l.mu.Until())
}

// Token is the random value identifying this holder on every node.
func (l *Lock) Token() string {
	return l.mu.Value()
}
