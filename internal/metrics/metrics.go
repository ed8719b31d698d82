package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"cottage/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cottage"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	bookingSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	bookingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_decisions_total",
			Help:      "Admin booking decisions by resulting status.",
		},
		[]string{"status"},
	)

	calendarOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_operations_total",
			Help:      "Calendar sync calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	issueUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issue_updates_total",
			Help:      "Issue writes: creations, edits and log entries.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingSubmissions, bookingDecisions, calendarOps, issueUpdates)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// IncBookingSubmission records accepted, conflict or invalid.
func IncBookingSubmission(outcome string) {
	bookingSubmissions.WithLabelValues(outcome).Inc()
}

func IncCalendar(operation, result string) {
	calendarOps.WithLabelValues(operation, result).Inc()
}

// Subscribe counts domain events published on the bus.
func Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingDecided, func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		bookingDecisions.WithLabelValues(p.Status).Inc()
		return nil
	})
	bus.Subscribe(events.EventIssueUpdated, func(_ *events.Event) error {
		issueUpdates.Inc()
		return nil
	})
	bus.Subscribe(events.EventIssueCreated, func(_ *events.Event) error {
		issueUpdates.Inc()
		return nil
	})
}
