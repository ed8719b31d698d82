package models

import "time"

type Booking struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Notes          *string       `json:"notes"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	Status         BookingStatus `json:"status"`
	CreatedByID    *int64        `json:"created_by_id"`
	CreatedByName  string        `json:"created_by_name,omitempty"`
	CreatedByEmail string        `json:"created_by_email,omitempty"`
	ApprovedByID   *int64        `json:"approved_by_id"`
	ApprovedByName string        `json:"approved_by_name,omitempty"`
	RequesterName  string        `json:"requester_name"`
	RequesterEmail string        `json:"requester_email"`
	RequesterPhone *string       `json:"requester_phone"`
	GoogleEventID  *string       `json:"google_event_id"`
	LastSyncedAt   *time.Time    `json:"last_synced_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Overlaps reports whether the half-open range [start, end) intersects the booking.
// Touching endpoints do not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndDate) && b.StartDate.Before(end)
}

// HasConflict reports whether [start, end) intersects any active booking in the snapshot.
// Declined and cancelled bookings never block a range.
func HasConflict(start, end time.Time, bookings []*Booking) bool {
	for _, b := range bookings {
		if b == nil || !b.Status.Active() {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// EventID returns the stored calendar event id or "".
func (b *Booking) EventID() string {
	if b.GoogleEventID == nil {
		return ""
	}
	return *b.GoogleEventID
}

// BookingDecision is the set of fields an admin decision writes in one update.
type BookingDecision struct {
	Status        BookingStatus
	ApprovedByID  int64
	Notes         *string
	GoogleEventID *string
	SyncedAt      time.Time
}

type BookingOrder string

const (
	BookingOrderStartAsc  BookingOrder = "start_asc"
	BookingOrderStartDesc BookingOrder = "start_desc"
	BookingOrderStatus    BookingOrder = "status"
)

// BookingFilter narrows booking listings. Zero value lists everything by start date.
type BookingFilter struct {
	Statuses     []BookingStatus
	HideInactive bool
	EndsAfter    *time.Time
	StartsBefore *time.Time
	Order        BookingOrder
}
