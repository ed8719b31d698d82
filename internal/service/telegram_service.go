package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cottage/internal/domain"
	"cottage/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// notificationQueueSize bounds pending admin messages; overflow is dropped.
const notificationQueueSize = 64

// ErrNotificationQueueFull is returned by the event handler when the
// delivery worker is behind.
var ErrNotificationQueueFull = errors.New("admin notification queue is full")

type adminNotification struct {
	bookingID int64
	text      string
}

// TelegramService tells admin chats about new booking requests.
// Event handlers only enqueue; Run delivers in the background.
type TelegramService struct {
	bot      domain.TelegramSender
	chatIDs  []int64
	location *time.Location
	queue    chan adminNotification
	logger   *zerolog.Logger
}

func NewTelegramService(bot domain.TelegramSender, chatIDs []int64, location *time.Location, logger *zerolog.Logger) *TelegramService {
	if location == nil {
		location = time.UTC
	}
	return &TelegramService{
		bot:      bot,
		chatIDs:  chatIDs,
		location: location,
		queue:    make(chan adminNotification, notificationQueueSize),
		logger:   logger,
	}
}

// Run delivers queued notifications until ctx is cancelled.
func (s *TelegramService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				s.logger.Warn().Int("pending", n).Msg("dropping undelivered admin notifications on shutdown")
			}
			return
		case n := <-s.queue:
			_ = s.deliver(n)
		}
	}
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return s.bot.Send(msg)
}

// Subscribe wires the notifier to the event bus.
func (s *TelegramService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingSubmitted, s.onBookingSubmitted)
}

func (s *TelegramService) onBookingSubmitted(e *events.Event) error {
	var p events.BookingEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}

	n := adminNotification{bookingID: p.BookingID, text: s.bookingRequestText(p)}
	select {
	case s.queue <- n:
		return nil
	default:
		s.logger.Warn().Int64("booking_id", p.BookingID).Msg("admin notification dropped, queue full")
		return ErrNotificationQueueFull
	}
}

func (s *TelegramService) deliver(n adminNotification) error {
	var failed int
	for _, chatID := range s.chatIDs {
		if _, err := s.SendMessage(chatID, n.text); err != nil {
			failed++
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Int64("booking_id", n.bookingID).Msg("failed to notify admin chat")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d admin notifications failed", failed, len(s.chatIDs))
	}
	return nil
}

func (s *TelegramService) bookingRequestText(p events.BookingEventPayload) string {
	const layout = "Mon 2 Jan 2006 15:04"
	var b strings.Builder
	fmt.Fprintf(&b, "New booking request #%d\n", p.BookingID)
	fmt.Fprintf(&b, "%s\n", p.Title)
	fmt.Fprintf(&b, "%s → %s\n", p.StartDate.In(s.location).Format(layout), p.EndDate.In(s.location).Format(layout))
	fmt.Fprintf(&b, "From: %s <%s>", p.RequesterName, p.RequesterEmail)
	return b.String()
}
