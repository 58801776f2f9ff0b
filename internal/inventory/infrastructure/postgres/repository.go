package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/pgtx"
)

// Repository reads events and keeps the durable per ticket type availability.
// Reserve and Restore join the caller's transaction when ctx carries one.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	q := pgtx.From(ctx, r.pool)

	var ev domain.Event
	err := q.QueryRow(ctx, `SELECT id, name, description, location, starts_at FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Name, &ev.Description, &ev.Location, &ev.StartsAt)
	if pgtx.IsNoRows(err) {
		return domain.Event{}, fmt.Errorf("%w: %s", domain.ErrEventNotFound, id)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT type, unit_price, ticket_limit, available FROM ticket_types WHERE event_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get ticket types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.Type, &tt.UnitPrice, &tt.Limit, &tt.Available); err != nil {
			return domain.Event{}, fmt.Errorf("scan ticket type: %w", err)
		}
		ev.TicketTypes = append(ev.TicketTypes, tt)
	}
	if err := rows.Err(); err != nil {
		return domain.Event{}, fmt.Errorf("get ticket types: %w", err)
	}
	return ev, nil
}

// CreateEvent stores the event and its ticket types in one transaction.
func (r *Repository) CreateEvent(ctx context.Context, ev domain.Event) error {
	return pgtx.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := pgtx.From(ctx, r.pool)

		_, err := q.Exec(ctx, `INSERT INTO events (id, name, description, location, starts_at) VALUES ($1,$2,$3,$4,$5)`,
			ev.ID, ev.Name, ev.Description, ev.Location, ev.StartsAt)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		batch := &pgx.Batch{}
		for i, tt := range ev.TicketTypes {
			batch.Queue(`INSERT INTO ticket_types (event_id, type, position, unit_price, ticket_limit, available)
				VALUES ($1,$2,$3,$4,$5,$6)`, ev.ID, tt.Type, i, tt.UnitPrice, tt.Limit, tt.Available)
		}
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert ticket types: %w", err)
		}
		return nil
	})
}

// Reserve takes qty units off the durable count. It never lets the count go
// negative, so it stays correct even if the reservation lock has lapsed.
func (r *Repository) Reserve(ctx context.Context, eventID, ticketType string, qty int) error {
	q := pgtx.From(ctx, r.pool)

	var left int
	err := q.QueryRow(ctx, `
		UPDATE ticket_types SET available = available - $3
		WHERE event_id = $1 AND type = $2 AND available >= $3
		RETURNING available`, eventID, ticketType, qty).Scan(&left)
	if err == nil {
		return nil
	}
	if !pgtx.IsNoRows(err) {
		return fmt.Errorf("reserve %s/%s: %w", eventID, ticketType, err)
	}

	var available int
	err = q.QueryRow(ctx, `SELECT available FROM ticket_types WHERE event_id = $1 AND type = $2`, eventID, ticketType).Scan(&available)
	if pgtx.IsNoRows(err) {
		return fmt.Errorf("%w: %s", domain.ErrTicketTypeNotFound, ticketType)
	}
	if err != nil {
		return fmt.Errorf("reserve %s/%s: %w", eventID, ticketType, err)
	}
	return &domain.InsufficientInventoryError{Type: ticketType, Available: available}
}

func (r *Repository) Restore(ctx context.Context, eventID, ticketType string, qty int) error {
	ct, err := pgtx.From(ctx, r.pool).Exec(ctx, `
		UPDATE ticket_types SET available = LEAST(available + $3, ticket_limit)
		WHERE event_id = $1 AND type = $2`, eventID, ticketType, qty)
	if err != nil {
		return fmt.Errorf("restore %s/%s: %w", eventID, ticketType, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTicketTypeNotFound, ticketType)
	}
	return nil
}
