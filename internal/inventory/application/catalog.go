package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
)

// EventWriter persists new catalogue entries.
type EventWriter interface {
	CreateEvent(ctx context.Context, ev domain.Event) error
}

type CatalogStore interface {
	EventStore
	EventWriter
}

// Catalog publishes events and serves their current durable state.
type Catalog struct {
	log   *slog.Logger
	store CatalogStore
	newID func() string
}

func NewCatalog(log *slog.Logger, store CatalogStore) *Catalog {
	return &Catalog{log: log, store: store, newID: uuid.NewString}
}

type TicketTypeRequest struct {
	Type  string `json:"type"`
	Price int64  `json:"price"`
	Limit int    `json:"limit"`
}

type CreateEventRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Date        time.Time           `json:"date"`
	Location    string              `json:"location"`
	Tickets     []TicketTypeRequest `json:"tickets"`
}

func (c *Catalog) CreateEvent(ctx context.Context, req CreateEventRequest) (domain.Event, error) {
	tickets := make([]domain.TicketType, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		tickets = append(tickets, domain.TicketType{Type: t.Type, UnitPrice: t.Price, Limit: t.Limit})
	}
	ev, err := domain.NewEvent(c.newID(), req.Name, req.Description, req.Location, req.Date, tickets)
	if err != nil {
		return domain.Event{}, err
	}
	if err := c.store.CreateEvent(ctx, ev); err != nil {
		return domain.Event{}, err
	}
	c.log.Info("event created", "event_id", ev.ID, "ticket_types", len(ev.TicketTypes))
	return ev, nil
}

func (c *Catalog) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	return c.store.GetEvent(ctx, id)
}
