package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cottage/internal/events"
	"cottage/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramService_NotifiesAdmins(t *testing.T) {
	sender := new(mockTelegramSender)
	logger := zerolog.Nop()
	dublin, err := time.LoadLocation("Europe/Dublin")
	require.NoError(t, err)
	svc := NewTelegramService(sender, []int64{100, 200}, dublin, &logger)

	bus := events.NewEventBus()
	svc.Subscribe(bus)

	for _, chatID := range []int64{100, 200} {
		id := chatID
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ChatID == id &&
				assert.ObjectsAreEqual("New booking request #9\nSummer week\nSun 1 Jun 2025 15:00 → Sun 8 Jun 2025 11:00\nFrom: Ann <ann@example.com>", msg.Text)
		})).Return(tgbotapi.Message{}, nil).Once()
	}

	require.NoError(t, bus.PublishJSON(events.EventBookingSubmitted, events.BookingEventPayload{
		BookingID:      9,
		Title:          "Summer week",
		StartDate:      time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC),
		RequesterName:  "Ann",
		RequesterEmail: "ann@example.com",
	}))
	sender.AssertNotCalled(t, "Send", mock.Anything)

	require.Len(t, svc.queue, 1)
	require.NoError(t, svc.deliver(<-svc.queue))
	sender.AssertExpectations(t)
}

func TestTelegramService_SendFailure(t *testing.T) {
	sender := new(mockTelegramSender)
	logger := zerolog.Nop()
	svc := NewTelegramService(sender, []int64{1}, nil, &logger)

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked")).Once()

	event, err := events.NewJSONEvent(events.EventBookingSubmitted, events.BookingEventPayload{BookingID: 1})
	require.NoError(t, err)
	require.NoError(t, svc.onBookingSubmitted(&event))
	assert.Error(t, svc.deliver(<-svc.queue))

	bad := events.Event{Type: events.EventBookingSubmitted, Payload: []byte("{")}
	assert.Error(t, svc.onBookingSubmitted(&bad))
}

func TestTelegramService_RunDeliversInBackground(t *testing.T) {
	sender := new(mockTelegramSender)
	logger := zerolog.Nop()
	svc := NewTelegramService(sender, []int64{7}, nil, &logger)

	delivered := make(chan struct{})
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once().
		Run(func(mock.Arguments) { close(delivered) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	bus := events.NewEventBus()
	svc.Subscribe(bus)
	require.NoError(t, bus.PublishJSON(events.EventBookingSubmitted, events.BookingEventPayload{BookingID: 4}))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	sender.AssertExpectations(t)
}

func TestTelegramService_QueueFull(t *testing.T) {
	sender := new(mockTelegramSender)
	logger := zerolog.Nop()
	svc := NewTelegramService(sender, []int64{1}, nil, &logger)

	event, err := events.NewJSONEvent(events.EventBookingSubmitted, events.BookingEventPayload{BookingID: 2})
	require.NoError(t, err)
	for i := 0; i < notificationQueueSize; i++ {
		require.NoError(t, svc.onBookingSubmitted(&event))
	}
	assert.ErrorIs(t, svc.onBookingSubmitted(&event), ErrNotificationQueueFull)
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

// stalledSender blocks every send until release is closed.
type stalledSender struct {
	release chan struct{}
}

func (s stalledSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	return tgbotapi.Message{}, nil
}

func TestSubmit_DoesNotWaitForStalledTelegram(t *testing.T) {
	logger := zerolog.Nop()
	sender := stalledSender{release: make(chan struct{})}
	t.Cleanup(func() { close(sender.release) })

	notifier := NewTelegramService(sender, []int64{1, 2}, nil, &logger)
	bus := events.NewEventBus()
	notifier.Subscribe(bus)

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go notifier.Run(runCtx)

	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, new(mockCalendar), bus, time.UTC, &logger)
	svc.now = func() time.Time { return fixedNow }

	ctx, done := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer done()
	repo.On("CreateBookingWithLock", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		start := time.Now()
		b, err := svc.Submit(ctx, anonymous, validInput())
		require.NoError(t, err)
		assert.Equal(t, models.BookingPending, b.Status)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	}
	repo.AssertExpectations(t)
}
