package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/pgtx"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return pgtx.WithTx(ctx, r.pool, fn)
}

func (r *Repository) Insert(ctx context.Context, o domain.Order) error {
	q := pgtx.From(ctx, r.pool)

	_, err := q.Exec(ctx, `INSERT INTO orders (id, event_id, user_id, total_amount, status, created_at, expires_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$6)`,
		o.ID, o.EventID, o.UserID, o.TotalAmount, string(o.Status), o.CreatedAt, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, position, type, quantity, unit_price, line_total)
            VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, l.Type, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order lines: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, `SELECT id, event_id, user_id, total_amount, status, created_at, expires_at FROM orders WHERE id=$1`)
}

// GetForUpdate locks the order row until the surrounding transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, `SELECT id, event_id, user_id, total_amount, status, created_at, expires_at FROM orders WHERE id=$1 FOR UPDATE`)
}

func (r *Repository) get(ctx context.Context, id, query string) (domain.Order, error) {
	q := pgtx.From(ctx, r.pool)

	var (
		o      domain.Order
		status string
	)
	err := q.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.EventID, &o.UserID, &o.TotalAmount, &status, &o.CreatedAt, &o.ExpiresAt)
	if pgtx.IsNoRows(err) {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := q.Query(ctx, `SELECT type, quantity, unit_price, line_total FROM order_lines WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.Type, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return domain.Order{}, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("get order lines: %w", err)
	}
	return o, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	ct, err := pgtx.From(ctx, r.pool).Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return nil
}

// ListExpired returns pending orders whose hold window ended before now, oldest first.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := pgtx.From(ctx, r.pool).Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	return ids, nil
}
