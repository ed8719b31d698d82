package models

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingApproved  BookingStatus = "APPROVED"
	BookingDeclined  BookingStatus = "DECLINED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BookingStatuses lists every booking status in display order.
var BookingStatuses = []BookingStatus{BookingPending, BookingApproved, BookingDeclined, BookingCancelled}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingDeclined, BookingCancelled:
		return true
	}
	return false
}

// Active reports whether a booking in this status holds its slot.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingApproved
}

type IssueStatus string

const (
	IssueOpen       IssueStatus = "OPEN"
	IssueInProgress IssueStatus = "IN_PROGRESS"
	IssueBlocked    IssueStatus = "BLOCKED"
	IssueResolved   IssueStatus = "RESOLVED"
	IssueClosed     IssueStatus = "CLOSED"
)

var IssueStatuses = []IssueStatus{IssueOpen, IssueInProgress, IssueBlocked, IssueResolved, IssueClosed}

// Valid only checks enum membership; any status may follow any other.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueOpen, IssueInProgress, IssueBlocked, IssueResolved, IssueClosed:
		return true
	}
	return false
}

// Done reports whether the issue no longer needs attention.
func (s IssueStatus) Done() bool {
	return s == IssueResolved || s == IssueClosed
}

type IssuePriority string

const (
	PriorityLow      IssuePriority = "LOW"
	PriorityMedium   IssuePriority = "MEDIUM"
	PriorityHigh     IssuePriority = "HIGH"
	PriorityCritical IssuePriority = "CRITICAL"
)

var IssuePriorities = []IssuePriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p IssuePriority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from LOW (1) to CRITICAL (4); unknown values rank 0.
func (p IssuePriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

const (
	// IssueCreatedNote is the text of the update synthesized for every new issue.
	IssueCreatedNote = "Issue created"

	// DefaultCalendarTimeZone is used when google.time_zone is empty.
	DefaultCalendarTimeZone = "Europe/Dublin"

	// DefaultSessionTTL время жизни сессии в секундах
	DefaultSessionTTL = 7 * 24 * 60 * 60

	// BookingSubmitLimit количество публичных заявок в окне
	BookingSubmitLimit = 5

	// BookingSubmitWindow окно ограничения публичных заявок
	BookingSubmitWindow = 60 * 60 // 1 час в секундах
)
