package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

type Orders interface {
	Book(ctx context.Context, req application.BookRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	Cancel(ctx context.Context, id string) (application.Transition, error)
}

type Handler struct {
	log     *slog.Logger
	service Orders
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service Orders) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)

	return r
}

// orderResponse has the same shape as the order-created event.
type orderResponse = domain.OrderCreated

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req application.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid body"})
		return
	}
	span.SetAttributes(attribute.String("event.id", req.EventID), attribute.String("user.id", req.UserID))

	o, err := h.service.Book(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse(domain.NewOrderCreated(o)))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(domain.NewOrderCreated(o)))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	id := chi.URLParam(r, "id")
	tr, err := h.service.Cancel(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.service.GetOrder(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{OrderID: id, Status: o.Status, Transition: tr})
}

type cancelResponse struct {
	OrderID    string                 `json:"orderId"`
	Status     domain.OrderStatus     `json:"status"`
	Transition application.Transition `json:"transition"`
}

type errorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var insufficient *invdomain.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, errorBody{Message: err.Error(), Type: insufficient.Type, Available: &insufficient.Available})
	case errors.Is(err, domain.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.Is(err, invdomain.ErrLockUnavailable):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "event is busy, retry shortly"})
	case errors.Is(err, invdomain.ErrEventNotFound),
		errors.Is(err, invdomain.ErrTicketTypeNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: err.Error()})
	default:
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
