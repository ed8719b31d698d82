package models

import "time"

type Issue struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Priority       IssuePriority `json:"priority"`
	Status         IssueStatus   `json:"status"`
	Location       *string       `json:"location"`
	TargetDate     *time.Time    `json:"target_date"`
	ReportedByID   int64         `json:"reported_by_id"`
	ReportedByName string        `json:"reported_by_name,omitempty"`
	AssignedToID   *int64        `json:"assigned_to_id"`
	AssignedToName string        `json:"assigned_to_name,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Updates        []IssueUpdate `json:"updates,omitempty"`
	LatestUpdate   *IssueUpdate  `json:"latest_update,omitempty"`
}

// IssueUpdate is an append-only activity entry. Status is set only when the
// entry also moved the issue to that status.
type IssueUpdate struct {
	ID         int64        `json:"id"`
	IssueID    int64        `json:"issue_id"`
	AuthorID   int64        `json:"author_id"`
	AuthorName string       `json:"author_name,omitempty"`
	Notes      string       `json:"notes"`
	Status     *IssueStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// IssueChanges carries an edit. Only fields with Set are written; a Set field
// with a nil Value is cleared.
type IssueChanges struct {
	Title        Optional[string]
	Description  Optional[string]
	Status       Optional[IssueStatus]
	Priority     Optional[IssuePriority]
	Location     Optional[string]
	AssignedToID Optional[int64]
	TargetDate   Optional[time.Time]
}

func (c IssueChanges) Empty() bool {
	return !c.Title.Set && !c.Description.Set && !c.Status.Set && !c.Priority.Set &&
		!c.Location.Set && !c.AssignedToID.Set && !c.TargetDate.Set
}

type IssueOrder string

const (
	IssueOrderPriority IssueOrder = "priority"
	IssueOrderNewest   IssueOrder = "newest"
	IssueOrderOldest   IssueOrder = "oldest"
	IssueOrderStatus   IssueOrder = "status"
)

type IssueFilter struct {
	Status   IssueStatus
	HideDone bool
	Order    IssueOrder
}
