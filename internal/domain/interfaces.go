package domain

import (
	"context"
	"time"

	"cottage/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	ListApprovedBookings(ctx context.Context) ([]*models.Booking, error)
	FindOverlapping(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	ApplyBookingDecision(ctx context.Context, id int64, d models.BookingDecision) (*models.Booking, error)
	UpdateBookingSync(ctx context.Context, id int64, eventID *string, syncedAt time.Time) error
	DeleteBooking(ctx context.Context, id int64) error
}

type IssueRepository interface {
	CreateIssueWithLog(ctx context.Context, issue *models.Issue, first *models.IssueUpdate) error
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, id int64, changes models.IssueChanges, entry *models.IssueUpdate) (*models.Issue, error)
	AppendIssueUpdate(ctx context.Context, entry *models.IssueUpdate) error
	DeleteIssue(ctx context.Context, id int64) error
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
}

// CalendarSyncer mirrors approved bookings to an external calendar.
// Failures are never returned: Upsert yields "" and Remove does nothing.
type CalendarSyncer interface {
	Upsert(ctx context.Context, booking *models.Booking) string
	Remove(ctx context.Context, booking *models.Booking)
	Enabled() bool
}

// SessionStore keeps login sessions and short-lived counters.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
