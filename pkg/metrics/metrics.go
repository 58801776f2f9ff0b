package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "bookings_total",
		Help:      "Booking attempts by result.",
	}, []string{"result"})

	LockFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "reservation_lock_failures_total",
		Help:      "Reservation lock acquisitions that exhausted their retry budget.",
	})

	DeliveryGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "delivery_gaps_total",
		Help:      "order-created events that failed to publish after commit.",
	})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "settlements_total",
		Help:      "Settlement outcomes by decision and transition.",
	}, []string{"decision", "transition"})

	MalformedMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "malformed_messages_total",
		Help:      "Messages skipped because their payload could not be parsed.",
	})

	ExpiredOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tickets",
		Name:      "expired_orders_cancelled_total",
		Help:      "Pending orders cancelled by the expiry sweeper.",
	})
)
