package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cottage/internal/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("GET /api/bookings", http.StatusOK)
		IncBookingSubmission("accepted")
		IncCalendar("upsert", "ok")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/bookings", "200")))
}

func TestSubscribe(t *testing.T) {
	bus := events.NewEventBus()
	Subscribe(bus)

	before := testutil.ToFloat64(bookingDecisions.WithLabelValues("APPROVED"))
	require.NoError(t, bus.PublishJSON(events.EventBookingDecided, events.BookingEventPayload{BookingID: 1, Status: "APPROVED"}))
	assert.Equal(t, before+1, testutil.ToFloat64(bookingDecisions.WithLabelValues("APPROVED")))

	updates := testutil.ToFloat64(issueUpdates)
	require.NoError(t, bus.PublishJSON(events.EventIssueUpdated, events.IssueEventPayload{IssueID: 3}))
	assert.Equal(t, updates+1, testutil.ToFloat64(issueUpdates))
}

func TestHandler(t *testing.T) {
	Register()
	IncBookingSubmission("rejected")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cottage_booking_submissions_total")
}
