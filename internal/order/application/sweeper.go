package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/Ticket-Booking-System/pkg/metrics"
)

// Sweeper cancels pending orders whose hold window elapsed without a
// settlement, returning their tickets to the pool.
type Sweeper struct {
	log      *slog.Logger
	svc      *Service
	interval time.Duration
	batch    int
}

func NewSweeper(log *slog.Logger, svc *Service, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{log: log, svc: svc, interval: interval, batch: batch}
}

func (w *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry sweeper stopping")
			return nil
		case <-t.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("expiry sweep failed", "err", err)
			}
		}
	}
}

// Sweep cancels one batch of expired orders and returns how many it cancelled.
// Orders that fail to cancel are retried on the next sweep.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := w.svc.orders.ListExpired(ctx, w.svc.clock.Now(), w.batch)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, id := range ids {
		tr, err := w.svc.Cancel(ctx, id)
		if err != nil {
			w.log.Warn("expired order not cancelled", "order_id", id, "err", err)
			continue
		}
		if tr == TransitionApplied {
			cancelled++
			metrics.ExpiredOrdersTotal.Inc()
		}
	}
	if cancelled > 0 {
		w.log.Info("expired orders cancelled", "count", cancelled)
	}
	return cancelled, nil
}
