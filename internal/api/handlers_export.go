package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"cottage/internal/export"
	"cottage/internal/service"
)

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if err := service.RequireAdmin(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	hidePast := false
	bookings, err := s.svc.Bookings.List(r.Context(), actor, service.BookingListOptions{HidePast: &hidePast})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, bookings, s.location); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeWorkbook(w, "bookings", &buf)
}

func (s *HTTPServer) handleExportIssues(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if err := service.RequireAdmin(actor); err != nil {
		writeServiceError(w, r, err)
		return
	}

	issues, err := s.svc.Issues.List(r.Context(), actor, service.IssueListOptions{})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteIssues(&buf, issues, s.location); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeWorkbook(w, "issues", &buf)
}

// writeWorkbook buffers the file first so a rendering error can still become a 500.
func (s *HTTPServer) writeWorkbook(w http.ResponseWriter, name string, buf *bytes.Buffer) {
	filename := fmt.Sprintf("%s_%s.xlsx", name, time.Now().In(s.location).Format("2006-01-02"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
