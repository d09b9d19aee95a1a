// services/rental/internal/metrics/metrics.go
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "backstage"
	subsystem = "rental"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rent_payments_recorded_total",
			Help:      "Total number of rent payments recorded",
		},
		[]string{"method", "status"}, // status: resulting payment status
	)

	PaymentsWaived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rent_payments_waived_total",
			Help:      "Total number of rent payments waived",
		},
	)

	PaymentsMarkedLate = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rent_payments_marked_late_total",
			Help:      "Total number of rent payments flagged late by the overdue sweep",
		},
	)

	TenanciesChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tenancies_total",
			Help:      "Tenancy lifecycle events",
		},
		[]string{"event"}, // created, ended
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions",
		},
		[]string{"status"},
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "moderation_decisions_total",
			Help:      "Property moderation decisions",
		},
		[]string{"decision", "result"}, // decision: approve/reject, result: success/failure
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Outbox events handed to the message bus",
		},
		[]string{"result"},
	)

	GatewayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_messages_total",
			Help:      "Mobile-money gateway notifications received over MQTT",
		},
		[]string{"result"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
	)
)

// Result maps an error to a "success"/"failure" label.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// CollectDBStats samples pool statistics until ctx is done.
func CollectDBStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			dbConnectionsOpen.Set(float64(stats.OpenConnections))
			dbConnectionsInUse.Set(float64(stats.InUse))
			dbConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
