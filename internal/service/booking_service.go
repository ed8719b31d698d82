package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cottage/internal/database"
	"cottage/internal/domain"
	"cottage/internal/events"
	"cottage/internal/metrics"
	"cottage/internal/models"

	"github.com/rs/zerolog"
)

// BookingInput is a submission as received from the public form.
type BookingInput struct {
	Title          string  `json:"title"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	RequesterName  string  `json:"requester_name"`
	RequesterEmail string  `json:"requester_email"`
	RequesterPhone *string `json:"requester_phone"`
	Notes          *string `json:"notes"`
}

// DecisionInput is an admin status change.
type DecisionInput struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// BookingListOptions mirrors the listing query string. A nil HidePast means true.
type BookingListOptions struct {
	Status       string
	HideDeclined bool
	HidePast     *bool
	From         *time.Time
	To           *time.Time
	Order        string
}

type BookingService struct {
	repo     domain.BookingRepository
	calendar domain.CalendarSyncer
	eventBus domain.EventPublisher
	location *time.Location
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(
	repo domain.BookingRepository,
	calendar domain.CalendarSyncer,
	eventBus domain.EventPublisher,
	location *time.Location,
	logger *zerolog.Logger,
) *BookingService {
	if location == nil {
		location = time.UTC
	}
	return &BookingService{
		repo:     repo,
		calendar: calendar,
		eventBus: eventBus,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *BookingService) validate(actor models.Actor, in BookingInput) (*models.Booking, error) {
	verr := &ValidationError{}

	title := strings.TrimSpace(in.Title)
	if !minLength(title, minTitleLength) {
		verr.Add("title", fmt.Sprintf("Title must be at least %d characters.", minTitleLength))
	}

	// signed-in members may leave their own contact details blank
	name := strings.TrimSpace(in.RequesterName)
	email := strings.TrimSpace(in.RequesterEmail)
	if actor.Authenticated() {
		if name == "" {
			name = actor.Name
		}
		if email == "" {
			email = actor.Email
		}
	}
	if !minLength(name, minNameLength) {
		verr.Add("requester_name", fmt.Sprintf("Name must be at least %d characters.", minNameLength))
	}
	if !validEmail(email) {
		verr.Add("requester_email", "Enter a valid email address.")
	}

	phone := trimmedOrNil(in.RequesterPhone)
	if phone != nil && len([]rune(*phone)) > maxPhoneLength {
		verr.Add("requester_phone", fmt.Sprintf("Phone must be at most %d characters.", maxPhoneLength))
	}

	start, okStart := parseDate(in.StartDate, s.location)
	if !okStart {
		verr.Add("start_date", "Enter a valid start date.")
	}
	end, okEnd := parseDate(in.EndDate, s.location)
	if !okEnd {
		verr.Add("end_date", "Enter a valid end date.")
	}
	if okStart && okEnd && !start.Before(end) {
		verr.Add("end_date", "End date must be after the start date.")
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	return &models.Booking{
		Title:          title,
		Notes:          trimmedOrNil(in.Notes),
		StartDate:      start,
		EndDate:        end,
		Status:         models.BookingPending,
		CreatedByID:    actor.UserRef(),
		RequesterName:  name,
		RequesterEmail: strings.ToLower(email),
		RequesterPhone: phone,
	}, nil
}

// CheckInput runs Submit's validation without storing anything, so callers
// can meter only well-formed submissions.
func (s *BookingService) CheckInput(actor models.Actor, in BookingInput) error {
	if _, err := s.validate(actor, in); err != nil {
		metrics.IncBookingSubmission("invalid")
		return err
	}
	return nil
}

// Submit validates and stores a new PENDING booking. Anyone may submit.
func (s *BookingService) Submit(ctx context.Context, actor models.Actor, in BookingInput) (*models.Booking, error) {
	booking, err := s.validate(actor, in)
	if err != nil {
		metrics.IncBookingSubmission("invalid")
		return nil, err
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrOverlap) {
			metrics.IncBookingSubmission("conflict")
			return nil, &ConflictError{Reason: overlapReason}
		}
		s.logger.Error().Err(err).Str("title", booking.Title).Msg("failed to create booking")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingSubmission("accepted")
	s.logger.Info().Int64("booking_id", booking.ID).Bool("anonymous", !actor.Authenticated()).Msg("booking submitted")
	s.publishEvent(events.EventBookingSubmitted, booking, actor, false)

	return booking, nil
}

// List returns bookings visible to the caller. Anonymous callers only ever
// see APPROVED bookings whatever status they ask for.
func (s *BookingService) List(ctx context.Context, actor models.Actor, opts BookingListOptions) ([]*models.Booking, error) {
	filter := models.BookingFilter{
		Order: models.BookingOrder(opts.Order),
	}
	switch filter.Order {
	case "", models.BookingOrderStartAsc, models.BookingOrderStartDesc, models.BookingOrderStatus:
	default:
		verr := &ValidationError{}
		verr.Add("order", "Unknown sort order.")
		return nil, verr
	}

	statuses, err := listStatuses(actor, opts)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return []*models.Booking{}, nil
	}
	filter.Statuses = statuses

	if opts.HidePast == nil || *opts.HidePast {
		now := s.now()
		filter.EndsAfter = &now
	}
	if opts.From != nil && (filter.EndsAfter == nil || opts.From.After(*filter.EndsAfter)) {
		filter.EndsAfter = opts.From
	}
	filter.StartsBefore = opts.To

	bookings, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list bookings")
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

func listStatuses(actor models.Actor, opts BookingListOptions) ([]models.BookingStatus, error) {
	var requested []models.BookingStatus
	status := strings.ToUpper(strings.TrimSpace(opts.Status))
	switch {
	case status == "" || status == "ALL":
		requested = models.BookingStatuses
	case models.BookingStatus(status).Valid():
		requested = []models.BookingStatus{models.BookingStatus(status)}
	default:
		verr := &ValidationError{}
		verr.Add("status", "Unknown booking status.")
		return nil, verr
	}

	statuses := make([]models.BookingStatus, 0, len(requested))
	for _, st := range requested {
		if opts.HideDeclined && st == models.BookingDeclined {
			continue
		}
		if !CanViewAllBookings(actor) && st != models.BookingApproved {
			continue
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Get returns a single booking with its contact details. Members only.
func (s *BookingService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *BookingService) load(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("failed to load booking")
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// Decide applies an admin status change and keeps the calendar in step.
// Calendar failures never fail the decision.
func (s *BookingService) Decide(ctx context.Context, actor models.Actor, id int64, in DecisionInput) (*models.Booking, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	status := models.BookingStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !status.Valid() {
		verr := &ValidationError{}
		verr.Add("status", "Unknown booking status.")
		return nil, verr
	}

	notes := trimmedOrNil(in.Notes)
	if notes != nil {
		booking.Notes = notes
	}

	previous := booking.GoogleEventID
	eventID := previous
	created := false

	switch status {
	case models.BookingApproved:
		if !booking.Status.Active() {
			if err := s.checkReactivation(ctx, booking); err != nil {
				return nil, err
			}
		}
		if remote := s.calendar.Upsert(ctx, booking); remote != "" {
			eventID = &remote
			created = previous == nil || remote != *previous
		}
	case models.BookingDeclined, models.BookingCancelled:
		s.calendar.Remove(ctx, booking)
		eventID = nil
	}

	updated, err := s.repo.ApplyBookingDecision(ctx, id, models.BookingDecision{
		Status:        status,
		ApprovedByID:  actor.UserID,
		Notes:         notes,
		GoogleEventID: eventID,
		SyncedAt:      s.now(),
	})
	if err != nil {
		if created {
			// the row was not updated, so the fresh event has no owner
			orphan := *booking
			orphan.GoogleEventID = eventID
			s.calendar.Remove(ctx, &orphan)
		}
		switch {
		case errors.Is(err, database.ErrOverlap):
			return nil, &ConflictError{Reason: overlapReason}
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Int64("booking_id", id).Str("status", string(status)).Msg("failed to apply booking decision")
		return nil, fmt.Errorf("decide booking: %w", err)
	}

	s.logger.Info().
		Int64("booking_id", id).
		Str("status", string(status)).
		Int64("admin_id", actor.UserID).
		Bool("calendar_synced", updated.GoogleEventID != nil).
		Msg("booking decided")
	s.publishEvent(events.EventBookingDecided, updated, actor, updated.GoogleEventID != nil)

	return updated, nil
}

// checkReactivation stops a declined or cancelled booking from being
// approved over a range that has since been taken.
func (s *BookingService) checkReactivation(ctx context.Context, booking *models.Booking) error {
	others, err := s.repo.FindOverlapping(ctx, booking.StartDate, booking.EndDate)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	var filtered []*models.Booking
	for _, b := range others {
		if b.ID != booking.ID {
			filtered = append(filtered, b)
		}
	}
	if models.HasConflict(booking.StartDate, booking.EndDate, filtered) {
		return &ConflictError{Reason: overlapReason}
	}
	return nil
}

// Delete removes the calendar event (best effort) and then the booking.
func (s *BookingService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	s.calendar.Remove(ctx, booking)

	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("failed to delete booking")
		return fmt.Errorf("delete booking: %w", err)
	}

	s.logger.Info().Int64("booking_id", id).Int64("admin_id", actor.UserID).Msg("booking deleted")
	s.publishEvent(events.EventBookingDeleted, booking, actor, false)
	return nil
}

// ResyncAllApproved pushes every approved booking to the calendar again and
// returns how many ended up with a different event id.
func (s *BookingService) ResyncAllApproved(ctx context.Context, actor models.Actor) (int, error) {
	if err := RequireAdmin(actor); err != nil {
		return 0, err
	}

	bookings, err := s.repo.ListApprovedBookings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list approved bookings")
		return 0, fmt.Errorf("list approved bookings: %w", err)
	}

	changed := 0
	for _, b := range bookings {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		id := s.calendar.Upsert(ctx, b)
		if id == "" || id == b.EventID() {
			continue
		}
		if err := s.repo.UpdateBookingSync(ctx, b.ID, &id, s.now()); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to store calendar event id")
			continue
		}
		changed++
	}

	s.logger.Info().Int("approved", len(bookings)).Int("changed", changed).Msg("calendar resync finished")
	return changed, nil
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, actor models.Actor, synced bool) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      b.ID,
		Title:          b.Title,
		Status:         string(b.Status),
		StartDate:      b.StartDate,
		EndDate:        b.EndDate,
		RequesterName:  b.RequesterName,
		RequesterEmail: b.RequesterEmail,
		CalendarSynced: synced,
		ChangedByID:    actor.UserID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
