package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	invapp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

// world is an in-memory durable store, cache, bus and marker store.
// WithTx snapshots the durable state and restores it when fn fails.
type world struct {
	mu   sync.Mutex
	txMu sync.Mutex

	events  map[string]invdomain.Event
	orders  map[string]domain.Order
	cache   map[string]int
	markers map[string]time.Duration

	published []domain.OrderCreated
	parked    []domain.OrderCreated

	failInsert  error
	failUpdate  error
	failRestore error
	failPublish error

	increments int
}

func newWorld(events ...invdomain.Event) *world {
	w := &world{
		events:  map[string]invdomain.Event{},
		orders:  map[string]domain.Order{},
		cache:   map[string]int{},
		markers: map[string]time.Duration{},
	}
	for _, ev := range events {
		w.events[ev.ID] = ev
	}
	return w
}

type snapshot struct {
	events map[string]invdomain.Event
	orders map[string]domain.Order
}

func (w *world) snapshot() snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := snapshot{events: map[string]invdomain.Event{}, orders: map[string]domain.Order{}}
	for id, ev := range w.events {
		s.events[id] = copyEvent(ev)
	}
	for id, o := range w.orders {
		s.orders[id] = copyOrder(o)
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = s.events
	w.orders = s.orders
}

func copyEvent(ev invdomain.Event) invdomain.Event {
	ev.TicketTypes = append([]invdomain.TicketType(nil), ev.TicketTypes...)
	return ev
}

func copyOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.Line(nil), o.Lines...)
	return o
}

func (w *world) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	w.txMu.Lock()
	defer w.txMu.Unlock()
	snap := w.snapshot()
	if err := fn(ctx); err != nil {
		w.restore(snap)
		return err
	}
	return nil
}

func (w *world) Insert(_ context.Context, o domain.Order) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failInsert != nil {
		return w.failInsert
	}
	w.orders[o.ID] = copyOrder(o)
	return nil
}

func (w *world) Get(_ context.Context, id string) (domain.Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (w *world) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return w.Get(ctx, id)
}

func (w *world) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failUpdate != nil {
		return w.failUpdate
	}
	o, ok := w.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	w.orders[id] = o
	return nil
}

func (w *world) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []string
	for id, o := range w.orders {
		if o.Status == domain.StatusPending && o.ExpiresAt.Before(now) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (w *world) GetEvent(_ context.Context, id string) (invdomain.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev, ok := w.events[id]
	if !ok {
		return invdomain.Event{}, invdomain.ErrEventNotFound
	}
	return copyEvent(ev), nil
}

func (w *world) ticketType(eventID, ticketType string) (*invdomain.TicketType, error) {
	ev, ok := w.events[eventID]
	if !ok {
		return nil, invdomain.ErrEventNotFound
	}
	for i := range ev.TicketTypes {
		if ev.TicketTypes[i].Type == ticketType {
			return &ev.TicketTypes[i], nil
		}
	}
	return nil, invdomain.ErrTicketTypeNotFound
}

func (w *world) Reserve(_ context.Context, eventID, ticketType string, qty int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	tt, err := w.ticketType(eventID, ticketType)
	if err != nil {
		return err
	}
	if tt.Available < qty {
		return &invdomain.InsufficientInventoryError{Type: ticketType, Available: tt.Available}
	}
	tt.Available -= qty
	return nil
}

func (w *world) Restore(_ context.Context, eventID, ticketType string, qty int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRestore != nil {
		return w.failRestore
	}
	tt, err := w.ticketType(eventID, ticketType)
	if err != nil {
		return err
	}
	tt.Available = min(tt.Available+qty, tt.Limit)
	return nil
}

func (w *world) durable(eventID, ticketType string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	tt, err := w.ticketType(eventID, ticketType)
	if err != nil {
		return -1
	}
	return tt.Available
}

func (w *world) GetAvailable(_ context.Context, eventID, ticketType string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := invdomain.AvailabilityKey(eventID, ticketType)
	if v, ok := w.cache[key]; ok {
		return v, nil
	}
	tt, err := w.ticketType(eventID, ticketType)
	if err != nil {
		return 0, err
	}
	w.cache[key] = tt.Available
	return tt.Available, nil
}

func (w *world) Decrement(_ context.Context, eventID, ticketType string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := invdomain.AvailabilityKey(eventID, ticketType)
	if v, ok := w.cache[key]; ok {
		if v-n < 0 {
			delete(w.cache, key)
			return nil
		}
		w.cache[key] = v - n
	}
	return nil
}

func (w *world) Increment(_ context.Context, eventID, ticketType string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.increments++
	key := invdomain.AvailabilityKey(eventID, ticketType)
	if v, ok := w.cache[key]; ok {
		w.cache[key] = v + n
	}
	return nil
}

func (w *world) Invalidate(_ context.Context, eventID, ticketType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cache, invdomain.AvailabilityKey(eventID, ticketType))
	return nil
}

func (w *world) cached(eventID, ticketType string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.cache[invdomain.AvailabilityKey(eventID, ticketType)]
	return v, ok
}

func (w *world) PublishOrderCreated(_ context.Context, ev domain.OrderCreated) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failPublish != nil {
		return w.failPublish
	}
	w.published = append(w.published, ev)
	return nil
}

func (w *world) ParkOrderCreated(_ context.Context, ev domain.OrderCreated) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parked = append(w.parked, ev)
	return nil
}

type markerStore struct{ w *world }

func (m markerStore) Set(_ context.Context, orderID string, ttl time.Duration) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.w.markers[orderID] = ttl
	return nil
}

func (m markerStore) Clear(_ context.Context, orderID string) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	delete(m.w.markers, orderID)
	return nil
}

type fakeLocker struct {
	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	unavailable bool
	extendErr   error
	acquired    atomic.Int32
	released    atomic.Int32
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: map[string]*sync.Mutex{}}
}

func (l *fakeLocker) Acquire(_ context.Context, eventID string) (invapp.Lock, error) {
	if l.unavailable {
		return nil, invdomain.ErrLockUnavailable
	}
	l.mu.Lock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	l.mu.Unlock()

	m.Lock()
	l.acquired.Add(1)
	return &fakeLock{m: m, owner: l}, nil
}

type fakeLock struct {
	once  sync.Once
	m     *sync.Mutex
	owner *fakeLocker
}

func (l *fakeLock) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.released.Add(1)
		l.m.Unlock()
	})
	return nil
}

func (l *fakeLock) Extend(context.Context) error { return l.owner.extendErr }

func (l *fakeLock) Valid(time.Time) bool { return true }

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func vipEvent() invdomain.Event {
	return invdomain.Event{ID: "E1", Name: "Concert", TicketTypes: []invdomain.TicketType{
		{Type: invdomain.TicketVIP, UnitPrice: 50, Limit: 10, Available: 10},
		{Type: invdomain.TicketNormal, UnitPrice: 20, Limit: 100, Available: 100},
	}}
}

type harness struct {
	svc    *Service
	world  *world
	locker *fakeLocker
	clock  *stepClock
}

func newHarness(events ...invdomain.Event) *harness {
	if len(events) == 0 {
		events = []invdomain.Event{vipEvent()}
	}
	w := newWorld(events...)
	locker := newFakeLocker()
	clk := &stepClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	var seq atomic.Int64
	svc := NewService(discardLogger(), Deps{
		Orders:       w,
		Events:       w,
		Stock:        w,
		Availability: w,
		Locker:       locker,
		Publisher:    w,
		Gaps:         w,
		Markers:      markerStore{w: w},
	},
		WithClock(clk),
		WithIDGenerator(func() string { return fmt.Sprintf("order-%d", seq.Add(1)) }),
	)
	return &harness{svc: svc, world: w, locker: locker, clock: clk}
}
