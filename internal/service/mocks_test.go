package service

import (
	"context"
	"time"

	"cottage/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListApprovedBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) FindOverlapping(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ApplyBookingDecision(ctx context.Context, id int64, d models.BookingDecision) (*models.Booking, error) {
	args := m.Called(ctx, id, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) UpdateBookingSync(ctx context.Context, id int64, eventID *string, at time.Time) error {
	return m.Called(ctx, id, eventID, at).Error(0)
}

func (m *mockBookingRepo) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) Upsert(ctx context.Context, b *models.Booking) string {
	return m.Called(ctx, b).String(0)
}

func (m *mockCalendar) Remove(ctx context.Context, b *models.Booking) {
	m.Called(ctx, b)
}

func (m *mockCalendar) Enabled() bool {
	return true
}

type mockIssueRepo struct {
	mock.Mock
}

func (m *mockIssueRepo) CreateIssueWithLog(ctx context.Context, issue *models.Issue, first *models.IssueUpdate) error {
	return m.Called(ctx, issue, first).Error(0)
}

func (m *mockIssueRepo) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Issue), args.Error(1)
}

func (m *mockIssueRepo) ListIssues(ctx context.Context, f models.IssueFilter) ([]*models.Issue, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Issue), args.Error(1)
}

func (m *mockIssueRepo) UpdateIssue(ctx context.Context, id int64, c models.IssueChanges, e *models.IssueUpdate) (*models.Issue, error) {
	args := m.Called(ctx, id, c, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Issue), args.Error(1)
}

func (m *mockIssueRepo) AppendIssueUpdate(ctx context.Context, e *models.IssueUpdate) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockIssueRepo) DeleteIssue(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

var (
	anonymous = models.Anonymous()
	member    = models.Actor{UserID: 2, Name: "Bob", Email: "bob@example.com", Role: models.RoleMember}
	admin     = models.Actor{UserID: 1, Name: "Ann", Email: "ann@example.com", Role: models.RoleAdmin}
)

func strPtr(s string) *string { return &s }
