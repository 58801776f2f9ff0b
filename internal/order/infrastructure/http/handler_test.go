package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/domain"
)

type stubOrders struct {
	bookErr   error
	cancelErr error
	orders    map[string]domain.Order
	lastBook  application.BookRequest
}

func (s *stubOrders) Book(_ context.Context, req application.BookRequest) (domain.Order, error) {
	s.lastBook = req
	if s.bookErr != nil {
		return domain.Order{}, s.bookErr
	}
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}
	lines := make([]domain.Line, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		lines = append(lines, domain.Line{Type: t.Type, Quantity: t.Quantity, UnitPrice: 50})
	}
	o := domain.NewOrder("order-1", req.EventID, req.UserID, lines, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), domain.DefaultHoldWindow)
	s.orders[o.ID] = o
	return o, nil
}

func (s *stubOrders) GetOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubOrders) Cancel(_ context.Context, id string) (application.Transition, error) {
	if s.cancelErr != nil {
		return "", s.cancelErr
	}
	o, ok := s.orders[id]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	if o.Status.Terminal() {
		return application.TransitionNoop, nil
	}
	o.Status = domain.StatusCancelled
	s.orders[id] = o
	return application.TransitionApplied, nil
}

func newServer(t *testing.T, stub *stubOrders) *httptest.Server {
	t.Helper()
	if stub.orders == nil {
		stub.orders = map[string]domain.Order{}
	}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), stub)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateOrder(t *testing.T) {
	stub := &stubOrders{}
	srv := newServer(t, stub)

	resp := post(t, srv.URL+"/orders", `{"eventId":"E1","userId":"userA","tickets":[{"type":"VIP","quantity":6}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[orderResponse](t, resp)
	assert.Equal(t, "order-1", body.ID)
	assert.Equal(t, int64(300), body.TotalAmount)
	assert.Equal(t, domain.StatusPending, body.Status)
	require.Len(t, body.Tickets, 1)
	assert.Equal(t, int64(300), body.Tickets[0].LineTotal)

	assert.Equal(t, "E1", stub.lastBook.EventID)
	assert.Equal(t, 6, stub.lastBook.Tickets[0].Quantity)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		check      func(t *testing.T, resp *http.Response)
	}{
		{
			name:       "malformed body",
			body:       `{"eventId":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero quantity",
			body:       `{"eventId":"E1","userId":"u","tickets":[{"type":"VIP","quantity":0}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "insufficient inventory",
			body:       `{"eventId":"E1","userId":"u","tickets":[{"type":"VIP","quantity":6}]}`,
			err:        &invdomain.InsufficientInventoryError{Type: "VIP", Available: 4},
			wantStatus: http.StatusConflict,
			check: func(t *testing.T, resp *http.Response) {
				body := decode[errorBody](t, resp)
				assert.Equal(t, "VIP", body.Type)
				require.NotNil(t, body.Available)
				assert.Equal(t, 4, *body.Available)
			},
		},
		{
			name:       "lock unavailable",
			body:       `{"eventId":"E1","userId":"u","tickets":[{"type":"VIP","quantity":1}]}`,
			err:        invdomain.ErrLockUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, "1", resp.Header.Get("Retry-After"))
			},
		},
		{
			name:       "unknown event",
			body:       `{"eventId":"nope","userId":"u","tickets":[{"type":"VIP","quantity":1}]}`,
			err:        invdomain.ErrEventNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "persistence failure",
			body:       `{"eventId":"E1","userId":"u","tickets":[{"type":"VIP","quantity":1}]}`,
			err:        errors.Join(domain.ErrPersistence, errors.New("connection reset")),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &stubOrders{bookErr: tt.err})
			resp := post(t, srv.URL+"/orders", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	stub := &stubOrders{}
	srv := newServer(t, stub)
	post(t, srv.URL+"/orders", `{"eventId":"E1","userId":"userA","tickets":[{"type":"VIP","quantity":1}]}`)

	resp, err := http.Get(srv.URL + "/orders/order-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "userA", decode[orderResponse](t, resp).UserID)

	missing, err := http.Get(srv.URL + "/orders/missing")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	stub := &stubOrders{}
	srv := newServer(t, stub)
	post(t, srv.URL+"/orders", `{"eventId":"E1","userId":"userA","tickets":[{"type":"VIP","quantity":1}]}`)

	resp := post(t, srv.URL+"/orders/order-1/cancel", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[cancelResponse](t, resp)
	assert.Equal(t, domain.StatusCancelled, body.Status)
	assert.Equal(t, application.TransitionApplied, body.Transition)

	again := post(t, srv.URL+"/orders/order-1/cancel", "")
	require.Equal(t, http.StatusOK, again.StatusCode)
	assert.Equal(t, application.TransitionNoop, decode[cancelResponse](t, again).Transition)

	missing := post(t, srv.URL+"/orders/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
