package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/outbox"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/pgtx"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/tracing"
)

// OutboxStore holds events whose direct publish failed until the relay
// delivers them.
type OutboxStore struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	source string
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool, source string) *OutboxStore {
	return &OutboxStore{log: log, pool: pool, source: source}
}

// ParkOrderCreated enqueues an order-created event for the relay.
func (s *OutboxStore) ParkOrderCreated(ctx context.Context, ev domain.OrderCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Enqueue(ctx, outbox.Event{
		AggregateType: "order",
		AggregateID:   ev.ID,
		Type:          domain.OrderCreatedType,
		Payload:       payload,
		Headers:       map[string]string{"source": s.source},
		Traceparent:   tracing.Traceparent(ctx),
	})
}

func (s *OutboxStore) Enqueue(ctx context.Context, event outbox.Event) error {
	_, err := pgtx.From(ctx, s.pool).Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		event.AggregateType, event.AggregateID, event.Type, event.Payload, event.Headers, event.Traceparent)
	if err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	s.log.Info("outbox event parked", "aggregate_id", event.AggregateID, "type", event.Type)
	return nil
}

// LockBatch claims up to batchSize pending events for relayID, plus events
// whose previous lease ran out without being marked.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		FROM outbox
		WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.RetryCount, &event.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		event.Headers = headers
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

// MarkFailed puts the event back in the pending pool, or parks it as failed
// once it has been attempted maxRetries times.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox SET
			retry_count = retry_count + 1,
			last_error = $2,
			lease_until = NULL,
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id=$1`, id, errMsg, maxRetries)
	return err
}
