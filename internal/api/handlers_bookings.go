package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"cottage/internal/models"
	"cottage/internal/service"
)

// publicBooking is what anonymous callers see: no contact details.
type publicBooking struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	StartDate time.Time            `json:"start_date"`
	EndDate   time.Time            `json:"end_date"`
	Status    models.BookingStatus `json:"status"`
}

func toPublic(bookings []*models.Booking) []publicBooking {
	out := make([]publicBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, publicBooking{
			ID:        b.ID,
			Title:     b.Title,
			StartDate: b.StartDate,
			EndDate:   b.EndDate,
			Status:    b.Status,
		})
	}
	return out
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	opts, err := s.bookingListOptions(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	actor := actorFrom(r.Context())
	bookings, err := s.svc.Bookings.List(r.Context(), actor, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !actor.Authenticated() {
		writeJSON(w, http.StatusOK, map[string]any{"bookings": toPublic(bookings)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) bookingListOptions(r *http.Request) (service.BookingListOptions, error) {
	q := r.URL.Query()
	opts := service.BookingListOptions{
		Status: q.Get("status"),
		Order:  q.Get("order"),
	}
	verr := &service.ValidationError{}

	hideDeclined, err := queryBool(r, "hide_declined")
	if err != nil {
		verr.Add("hide_declined", err.Error())
	} else if hideDeclined != nil {
		opts.HideDeclined = *hideDeclined
	}
	if opts.HidePast, err = queryBool(r, "hide_past"); err != nil {
		verr.Add("hide_past", err.Error())
	}

	for _, name := range []string{"from", "to"} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		t, ok := s.parseQueryDate(raw)
		if !ok {
			verr.Add(name, "Enter a valid date.")
			continue
		}
		if name == "from" {
			opts.From = &t
		} else {
			opts.To = &t
		}
	}

	return opts, verr.Err()
}

func (s *HTTPServer) parseQueryDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, s.location); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var in service.BookingInput
	if !decodeJSON(w, r, &in) {
		return
	}

	// only well-formed anonymous requests count toward the intake quota
	if !actor.Authenticated() {
		if err := s.svc.Bookings.CheckInput(actor, in); err != nil {
			writeServiceError(w, r, err)
			return
		}
		err := s.svc.Auth.AllowSubmission(r.Context(), clientKey(r),
			s.cfg.RateLimit.BookingSubmitLimit, s.cfg.RateLimit.BookingSubmitWindow)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	booking, err := s.svc.Bookings.Submit(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.svc.Bookings.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDecideBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// role first, so anonymous callers cannot probe the body format
	actor := actorFrom(r.Context())
	if err := service.RequireAdmin(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var in service.DecisionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	booking, err := s.svc.Bookings.Decide(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.Bookings.Delete(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleResync(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Bookings.ResyncAllApproved(r.Context(), actorFrom(r.Context()))
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": count})
}
