package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

func bookOne(t *testing.T, h *harness, qty int) domain.Order {
	t.Helper()
	o, err := h.svc.Book(context.Background(), book("userA", TicketRequest{Type: "VIP", Quantity: qty}))
	require.NoError(t, err)
	return o
}

func status(t *testing.T, h *harness, id string) domain.OrderStatus {
	t.Helper()
	o, err := h.world.Get(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func TestMarkPaid(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := bookOne(t, h, 3)

	tr, err := h.svc.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, tr)
	assert.Equal(t, domain.StatusPaid, status(t, h, o.ID))
	assert.NotContains(t, h.world.markers, o.ID)

	tr, err = h.svc.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionNoop, tr)
	assert.Equal(t, domain.StatusPaid, status(t, h, o.ID))

	cached, _ := h.world.cached("E1", "VIP")
	assert.Equal(t, 7, cached)
	assert.Equal(t, 7, h.world.durable("E1", "VIP"))
	assert.Zero(t, h.world.increments)
}

func TestMarkPaid_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.MarkPaid(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestMarkPaid_PersistenceFailure(t *testing.T) {
	h := newHarness()
	o := bookOne(t, h, 1)
	h.world.failUpdate = errors.New("deadlock detected")

	_, err := h.svc.MarkPaid(context.Background(), o.ID)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, domain.StatusPending, status(t, h, o.ID))
	assert.Contains(t, h.world.markers, o.ID)
}

func TestCancel_RestoresTickets(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	before, err := h.world.GetAvailable(ctx, "E1", "VIP")
	require.NoError(t, err)

	o := bookOne(t, h, 4)
	cached, _ := h.world.cached("E1", "VIP")
	require.Equal(t, before-4, cached)

	tr, err := h.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, tr)
	assert.Equal(t, domain.StatusCancelled, status(t, h, o.ID))

	cached, _ = h.world.cached("E1", "VIP")
	assert.Equal(t, before, cached)
	assert.Equal(t, before, h.world.durable("E1", "VIP"))
	assert.NotContains(t, h.world.markers, o.ID)
	assert.Equal(t, 1, h.world.increments)

	tr, err = h.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionNoop, tr)
	cached, _ = h.world.cached("E1", "VIP")
	assert.Equal(t, before, cached, "second cancel must not restore again")
	assert.Equal(t, 1, h.world.increments)
}

func TestCancel_MultipleLines(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	o, err := h.svc.Book(ctx, book("userA",
		TicketRequest{Type: "VIP", Quantity: 2},
		TicketRequest{Type: "NORMAL", Quantity: 30},
	))
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, 10, h.world.durable("E1", "VIP"))
	assert.Equal(t, 100, h.world.durable("E1", "NORMAL"))
	normal, _ := h.world.cached("E1", "NORMAL")
	assert.Equal(t, 100, normal)
	assert.Equal(t, 2, h.world.increments)
}

func TestStatusIsMonotonic(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel after paid", func(t *testing.T) {
		h := newHarness()
		o := bookOne(t, h, 2)
		_, err := h.svc.MarkPaid(ctx, o.ID)
		require.NoError(t, err)

		tr, err := h.svc.Cancel(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, TransitionNoop, tr)
		assert.Equal(t, domain.StatusPaid, status(t, h, o.ID))
		assert.Equal(t, 8, h.world.durable("E1", "VIP"))
		assert.Zero(t, h.world.increments)
	})

	t.Run("paid after cancel", func(t *testing.T) {
		h := newHarness()
		o := bookOne(t, h, 2)
		_, err := h.svc.Cancel(ctx, o.ID)
		require.NoError(t, err)

		tr, err := h.svc.MarkPaid(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, TransitionNoop, tr)
		assert.Equal(t, domain.StatusCancelled, status(t, h, o.ID))
	})
}

func TestCancel_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		h := newHarness()
		_, err := h.svc.Cancel(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.Zero(t, h.locker.acquired.Load())
	})

	t.Run("lock unavailable", func(t *testing.T) {
		h := newHarness()
		o := bookOne(t, h, 2)
		h.locker.unavailable = true

		_, err := h.svc.Cancel(ctx, o.ID)
		require.ErrorIs(t, err, invdomain.ErrLockUnavailable)
		assert.Equal(t, domain.StatusPending, status(t, h, o.ID))
	})

	t.Run("restore fails rolls back", func(t *testing.T) {
		h := newHarness()
		o := bookOne(t, h, 2)
		h.world.failRestore = errors.New("connection reset")

		_, err := h.svc.Cancel(ctx, o.ID)
		require.ErrorIs(t, err, domain.ErrPersistence)
		assert.Equal(t, domain.StatusPending, status(t, h, o.ID))
		assert.Equal(t, 8, h.world.durable("E1", "VIP"))
		cached, _ := h.world.cached("E1", "VIP")
		assert.Equal(t, 8, cached)
		assert.Zero(t, h.world.increments)
		assert.Equal(t, h.locker.acquired.Load(), h.locker.released.Load())
	})
}

func TestCancel_EvictedCacheStaysCorrect(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := bookOne(t, h, 5)

	require.NoError(t, h.world.Invalidate(ctx, "E1", "VIP"))

	_, err := h.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)

	_, ok := h.world.cached("E1", "VIP")
	assert.False(t, ok)

	available, err := h.world.GetAvailable(ctx, "E1", "VIP")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}
