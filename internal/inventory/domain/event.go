package domain

import (
	"fmt"
	"time"
)

// Ticket types offered by the event catalogue. Other names are accepted as-is.
const (
	TicketVIP       = "VIP"
	TicketNormal    = "NORMAL"
	TicketPromotion = "PROMOTION"
)

type Event struct {
	ID          string
	Name        string
	Description string
	Location    string
	StartsAt    time.Time
	TicketTypes []TicketType
}

// TicketType is one priced, capacity-limited class of ticket. Limit is fixed
// once the event is published; Available is the durable remaining count.
type TicketType struct {
	Type      string
	UnitPrice int64
	Limit     int
	Available int
}

// NewEvent validates a catalogue entry and opens every ticket type with its
// full limit available.
func NewEvent(id, name, description, location string, startsAt time.Time, tickets []TicketType) (Event, error) {
	if name == "" {
		return Event{}, fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if len(tickets) == 0 {
		return Event{}, fmt.Errorf("%w: at least one ticket type is required", ErrInvalidEvent)
	}
	seen := make(map[string]bool, len(tickets))
	opened := make([]TicketType, 0, len(tickets))
	for _, tt := range tickets {
		switch {
		case tt.Type == "":
			return Event{}, fmt.Errorf("%w: ticket type without a name", ErrInvalidEvent)
		case seen[tt.Type]:
			return Event{}, fmt.Errorf("%w: ticket type %s listed twice", ErrInvalidEvent, tt.Type)
		case tt.UnitPrice < 0:
			return Event{}, fmt.Errorf("%w: ticket type %s has a negative price", ErrInvalidEvent, tt.Type)
		case tt.Limit < 1:
			return Event{}, fmt.Errorf("%w: ticket type %s needs a limit of at least 1", ErrInvalidEvent, tt.Type)
		}
		seen[tt.Type] = true
		tt.Available = tt.Limit
		opened = append(opened, tt)
	}
	return Event{
		ID:          id,
		Name:        name,
		Description: description,
		Location:    location,
		StartsAt:    startsAt,
		TicketTypes: opened,
	}, nil
}

func (e Event) TicketType(t string) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.Type == t {
			return tt, true
		}
	}
	return TicketType{}, false
}

// AvailabilityKey is the cache key of one (event, ticket type) counter.
func AvailabilityKey(eventID, ticketType string) string {
	return fmt.Sprintf("event:%s:tickets:%s", eventID, ticketType)
}

func LockKey(eventID string) string {
	return fmt.Sprintf("lock:event:%s", eventID)
}
