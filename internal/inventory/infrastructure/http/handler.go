package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
)

type Catalog interface {
	CreateEvent(ctx context.Context, req application.CreateEventRequest) (domain.Event, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
}

type Handler struct {
	log     *slog.Logger
	catalog Catalog
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, catalog Catalog) *Handler {
	return &Handler{log: log, catalog: catalog, tracer: otel.Tracer("inventory-http")}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/events", h.createEvent)
	r.Get("/events/{id}", h.getEvent)
	return r
}

type ticketTypeResponse struct {
	Type      string `json:"type"`
	Price     int64  `json:"price"`
	Limit     int    `json:"limit"`
	Available int    `json:"available"`
}

type eventResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Date        time.Time            `json:"date"`
	Location    string               `json:"location"`
	Tickets     []ticketTypeResponse `json:"tickets"`
}

func toResponse(ev domain.Event) eventResponse {
	tickets := make([]ticketTypeResponse, 0, len(ev.TicketTypes))
	for _, tt := range ev.TicketTypes {
		tickets = append(tickets, ticketTypeResponse{Type: tt.Type, Price: tt.UnitPrice, Limit: tt.Limit, Available: tt.Available})
	}
	return eventResponse{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		Date:        ev.StartsAt,
		Location:    ev.Location,
		Tickets:     tickets,
	}
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateEvent")
	defer span.End()

	var req application.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	ev, err := h.catalog.CreateEvent(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(ev))
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetEvent")
	defer span.End()

	ev, err := h.catalog.GetEvent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(ev))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEvent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, domain.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Event not found"})
	default:
		h.log.Error("event request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
