package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cottage/internal/config"
	"cottage/internal/domain"
	"cottage/internal/metrics"
	"cottage/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const defaultBookedBy = "Cottage member"

// CalendarService mirrors bookings into a Google Calendar. It never returns
// errors to callers: failures are logged and reported as "no event id".
type CalendarService struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
	eventPlace string
	timeout    time.Duration
	retry      RetryPolicy
	logger     *zerolog.Logger
}

// NewCalendarSyncer returns a Google-backed syncer when credentials are
// configured and a no-op one otherwise.
func NewCalendarSyncer(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) (domain.CalendarSyncer, error) {
	if !cfg.Enabled() {
		logger.Warn().Msg("Google Calendar credentials are not configured, calendar sync disabled")
		return NoopCalendar{}, nil
	}

	jwtCfg, err := jwtConfig(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := NewCalendarService(ctx, cfg, logger, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func jwtConfig(cfg config.GoogleConfig) (*jwt.Config, error) {
	if cfg.CredentialsFile != "" {
		// Читаем файл учетных данных сервисного аккаунта
		credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read credentials file: %w", err)
		}
		c, err := google.JWTConfigFromJSON(credentialsJSON, calendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse credentials: %w", err)
		}
		return c, nil
	}

	return &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(cfg.ServiceAccountKey),
		Scopes:     []string{calendar.CalendarScope},
		TokenURL:   google.JWTTokenURL,
	}, nil
}

// NewCalendarService builds the Google implementation with explicit client options.
func NewCalendarService(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger, opts ...option.ClientOption) (*CalendarService, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	tz := cfg.TimeZone
	if tz == "" {
		tz = models.DefaultCalendarTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar time zone %q: %w", tz, err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CalendarService{
		service:    srv,
		calendarID: calendarID,
		location:   loc,
		eventPlace: cfg.EventLocation,
		timeout:    timeout,
		retry:      RetryPolicy{MaxRetries: cfg.MaxRetries, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		logger:     logger,
	}, nil
}

func (s *CalendarService) Enabled() bool {
	return true
}

// EventPayload builds the remote event for a booking.
func (s *CalendarService) EventPayload(b *models.Booking) *calendar.Event {
	return &calendar.Event{
		Summary:     b.Title,
		Description: eventDescription(b, s.eventPlace),
		Start: &calendar.EventDateTime{
			DateTime: b.StartDate.In(s.location).Format(time.RFC3339),
			TimeZone: s.location.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: b.EndDate.In(s.location).Format(time.RFC3339),
			TimeZone: s.location.String(),
		},
	}
}

func eventDescription(b *models.Booking, place string) string {
	var lines []string

	if b.Notes != nil {
		if n := strings.TrimSpace(*b.Notes); n != "" {
			lines = append(lines, n)
		}
	}

	bookedBy := firstNonEmpty(b.RequesterName, b.CreatedByName, defaultBookedBy)
	lines = append(lines, "Booked by "+bookedBy)

	if contact := firstNonEmpty(b.RequesterEmail, b.CreatedByEmail); contact != "" {
		lines = append(lines, "Contact: "+contact)
	}
	if b.RequesterPhone != nil && strings.TrimSpace(*b.RequesterPhone) != "" {
		lines = append(lines, "Phone: "+strings.TrimSpace(*b.RequesterPhone))
	}
	if place != "" {
		lines = append(lines, place)
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Upsert updates the booking's event when it has one and inserts otherwise.
// Returns the remote id, the previous id when the response omits one, or "".
func (s *CalendarService) Upsert(ctx context.Context, b *models.Booking) string {
	payload := s.EventPayload(b)
	previous := b.EventID()
	op := "insert"
	if previous != "" {
		op = "update"
	}

	var got *calendar.Event
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var err error
		if previous != "" {
			got, err = s.service.Events.Update(s.calendarID, previous, payload).Context(callCtx).Do()
		} else {
			got, err = s.service.Events.Insert(s.calendarID, payload).Context(callCtx).Do()
		}
		return err
	})
	if err != nil {
		metrics.IncCalendar(op, "error")
		s.logger.Warn().Err(err).Int64("booking_id", b.ID).Str("operation", op).
			Msg("Failed to sync booking with Google Calendar")
		return ""
	}

	metrics.IncCalendar(op, "ok")
	if got != nil && got.Id != "" {
		return got.Id
	}
	return previous
}

// Remove deletes the booking's event. Missing ids and remote failures are ignored.
func (s *CalendarService) Remove(ctx context.Context, b *models.Booking) {
	eventID := b.EventID()
	if eventID == "" {
		return
	}

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.service.Events.Delete(s.calendarID, eventID).Context(callCtx).Do()
	})
	switch {
	case err == nil:
		metrics.IncCalendar("delete", "ok")
	case isGone(err):
		metrics.IncCalendar("delete", "gone")
	default:
		metrics.IncCalendar("delete", "error")
		s.logger.Warn().Err(err).Int64("booking_id", b.ID).Str("event_id", eventID).
			Msg("Failed to remove Google Calendar event")
	}
}

// TestConnection проверяет доступ к календарю
func (s *CalendarService) TestConnection(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.service.Calendars.Get(s.calendarID).Context(callCtx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// NoopCalendar is used when no credentials are configured.
type NoopCalendar struct{}

func (NoopCalendar) Upsert(context.Context, *models.Booking) string { return "" }

func (NoopCalendar) Remove(context.Context, *models.Booking) {}

func (NoopCalendar) Enabled() bool { return false }

var (
	_ domain.CalendarSyncer = (*CalendarService)(nil)
	_ domain.CalendarSyncer = NoopCalendar{}
)
