package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridelink"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "http_requests_in_flight", Help: "HTTP requests currently being served"},
	)

	BookingsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_decided_total", Help: "Driver decisions on bookings"},
		[]string{"decision", "result"},
	)
	SeatReservationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "seat_reservation_conflicts_total", Help: "Conditional seat reservations that did not match"},
	)
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Applied ride status transitions"},
		[]string{"to"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "ws_connections", Help: "Open websocket connections on this instance"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Realtime events published"},
		[]string{"event"},
	)
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_dropped_total", Help: "Realtime deliveries dropped because a client queue was full"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Notifications recorded, by type and whether a live socket was reached"},
		[]string{"type", "live"},
	)
	OfflineDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offline_deliveries_total", Help: "Push and SMS delivery attempts"},
		[]string{"channel", "result"},
	)
)
