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
	"cottage/internal/models"

	"github.com/rs/zerolog"
)

type IssueInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Priority     string  `json:"priority"`
	Location     *string `json:"location"`
	TargetDate   *string `json:"target_date"`
	AssignedToID *int64  `json:"assigned_to_id"`
}

// IssuePatch is a partial edit. Omitted fields are untouched; an explicit
// null or empty string clears location, target date and assignee.
type IssuePatch struct {
	Title        models.Optional[string] `json:"title"`
	Description  models.Optional[string] `json:"description"`
	Priority     models.Optional[string] `json:"priority"`
	Status       models.Optional[string] `json:"status"`
	Location     models.Optional[string] `json:"location"`
	TargetDate   models.Optional[string] `json:"target_date"`
	AssignedToID models.Optional[int64]  `json:"assigned_to_id"`
	Notes        models.Optional[string] `json:"notes"`
}

type LogInput struct {
	Notes  string  `json:"notes"`
	Status *string `json:"status"`
}

type IssueListOptions struct {
	Status     string
	HideClosed bool
	Order      string
}

type IssueService struct {
	repo     domain.IssueRepository
	users    domain.UserRepository
	eventBus domain.EventPublisher
	location *time.Location
	logger   *zerolog.Logger
}

func NewIssueService(
	repo domain.IssueRepository,
	users domain.UserRepository,
	eventBus domain.EventPublisher,
	location *time.Location,
	logger *zerolog.Logger,
) *IssueService {
	if location == nil {
		location = time.UTC
	}
	return &IssueService{
		repo:     repo,
		users:    users,
		eventBus: eventBus,
		location: location,
		logger:   logger,
	}
}

func statusUpdatedNote(status models.IssueStatus) string {
	return fmt.Sprintf("Status updated to %s", status)
}

func (s *IssueService) checkAssignee(ctx context.Context, id int64, verr *ValidationError) error {
	ok, err := s.users.UserExists(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to check assignee")
		return fmt.Errorf("check assignee: %w", err)
	}
	if !ok {
		verr.Add("assigned_to_id", "Assignee does not exist.")
	}
	return nil
}

// Create stores a new OPEN issue with its "Issue created" log entry.
func (s *IssueService) Create(ctx context.Context, actor models.Actor, in IssueInput) (*models.Issue, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	title := strings.TrimSpace(in.Title)
	if !minLength(title, minTitleLength) {
		verr.Add("title", fmt.Sprintf("Title must be at least %d characters.", minTitleLength))
	}
	description := strings.TrimSpace(in.Description)
	if !minLength(description, minDescriptionLength) {
		verr.Add("description", fmt.Sprintf("Description must be at least %d characters.", minDescriptionLength))
	}

	priority := models.PriorityMedium
	if p := strings.ToUpper(strings.TrimSpace(in.Priority)); p != "" {
		priority = models.IssuePriority(p)
		if !priority.Valid() {
			verr.Add("priority", "Unknown priority.")
		}
	}

	var target *time.Time
	if t := trimmedOrNil(in.TargetDate); t != nil {
		parsed, ok := parseDate(*t, s.location)
		if !ok {
			verr.Add("target_date", "Enter a valid target date.")
		}
		target = &parsed
	}

	if in.AssignedToID != nil {
		if err := s.checkAssignee(ctx, *in.AssignedToID, verr); err != nil {
			return nil, err
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		Title:        title,
		Description:  description,
		Priority:     priority,
		Status:       models.IssueOpen,
		Location:     trimmedOrNil(in.Location),
		TargetDate:   target,
		ReportedByID: actor.UserID,
		AssignedToID: in.AssignedToID,
	}
	open := models.IssueOpen
	first := &models.IssueUpdate{
		AuthorID: actor.UserID,
		Notes:    models.IssueCreatedNote,
		Status:   &open,
	}

	if err := s.repo.CreateIssueWithLog(ctx, issue, first); err != nil {
		s.logger.Error().Err(err).Str("title", title).Msg("failed to create issue")
		return nil, fmt.Errorf("create issue: %w", err)
	}

	s.logger.Info().Int64("issue_id", issue.ID).Int64("user_id", actor.UserID).Msg("issue created")
	s.publishEvent(events.EventIssueCreated, issue, actor, first.Notes)

	return s.load(ctx, issue.ID)
}

// Get returns the issue with its log in chronological order.
func (s *IssueService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Issue, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *IssueService) load(ctx context.Context, id int64) (*models.Issue, error) {
	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Int64("issue_id", id).Msg("failed to load issue")
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *IssueService) List(ctx context.Context, actor models.Actor, opts IssueListOptions) ([]*models.Issue, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	filter := models.IssueFilter{HideDone: opts.HideClosed, Order: models.IssueOrder(opts.Order)}

	if st := strings.ToUpper(strings.TrimSpace(opts.Status)); st != "" && st != "ALL" {
		filter.Status = models.IssueStatus(st)
		if !filter.Status.Valid() {
			verr.Add("status", "Unknown issue status.")
		}
	}
	switch filter.Order {
	case "", models.IssueOrderPriority, models.IssueOrderNewest, models.IssueOrderOldest, models.IssueOrderStatus:
	default:
		verr.Add("order", "Unknown sort order.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	issues, err := s.repo.ListIssues(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list issues")
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	return issues, nil
}

// Edit applies a partial update. Notes or a status change append a log entry
// in the same transaction.
func (s *IssueService) Edit(ctx context.Context, actor models.Actor, id int64, patch IssuePatch) (*models.Issue, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, status, err := s.buildChanges(ctx, patch)
	if err != nil {
		return nil, err
	}

	var entry *models.IssueUpdate
	notes := ""
	if patch.Notes.Present() {
		notes = strings.TrimSpace(*patch.Notes.Value)
	}
	if notes != "" || status != nil {
		if notes == "" {
			notes = statusUpdatedNote(*status)
		}
		entry = &models.IssueUpdate{AuthorID: actor.UserID, Notes: notes, Status: status}
	}

	if changes.Empty() && entry == nil {
		return current, nil
	}

	updated, err := s.repo.UpdateIssue(ctx, id, changes, entry)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Int64("issue_id", id).Msg("failed to update issue")
		return nil, fmt.Errorf("update issue: %w", err)
	}

	logNote := ""
	if entry != nil {
		logNote = entry.Notes
	}
	s.publishEvent(events.EventIssueUpdated, updated, actor, logNote)
	return updated, nil
}

func (s *IssueService) buildChanges(ctx context.Context, patch IssuePatch) (models.IssueChanges, *models.IssueStatus, error) {
	var (
		changes models.IssueChanges
		status  *models.IssueStatus
	)
	verr := &ValidationError{}

	if patch.Title.Present() {
		title := strings.TrimSpace(*patch.Title.Value)
		if !minLength(title, minTitleLength) {
			verr.Add("title", fmt.Sprintf("Title must be at least %d characters.", minTitleLength))
		}
		changes.Title = models.Some(title)
	}
	if patch.Description.Present() {
		description := strings.TrimSpace(*patch.Description.Value)
		if !minLength(description, minDescriptionLength) {
			verr.Add("description", fmt.Sprintf("Description must be at least %d characters.", minDescriptionLength))
		}
		changes.Description = models.Some(description)
	}
	if patch.Priority.Present() {
		p := models.IssuePriority(strings.ToUpper(strings.TrimSpace(*patch.Priority.Value)))
		if !p.Valid() {
			verr.Add("priority", "Unknown priority.")
		}
		changes.Priority = models.Some(p)
	}
	if patch.Status.Present() {
		st := models.IssueStatus(strings.ToUpper(strings.TrimSpace(*patch.Status.Value)))
		if !st.Valid() {
			verr.Add("status", "Unknown issue status.")
		}
		changes.Status = models.Some(st)
		status = &st
	}
	if patch.Location.Set {
		if loc := trimmedOrNil(patch.Location.Value); loc != nil {
			changes.Location = models.Some(*loc)
		} else {
			changes.Location = models.Null[string]()
		}
	}
	if patch.TargetDate.Set {
		if raw := trimmedOrNil(patch.TargetDate.Value); raw != nil {
			t, ok := parseDate(*raw, s.location)
			if !ok {
				verr.Add("target_date", "Enter a valid target date.")
			}
			changes.TargetDate = models.Some(t)
		} else {
			changes.TargetDate = models.Null[time.Time]()
		}
	}
	if patch.AssignedToID.Set {
		if patch.AssignedToID.Value == nil {
			changes.AssignedToID = models.Null[int64]()
		} else {
			if err := s.checkAssignee(ctx, *patch.AssignedToID.Value, verr); err != nil {
				return changes, nil, err
			}
			changes.AssignedToID = models.Some(*patch.AssignedToID.Value)
		}
	}

	return changes, status, verr.Err()
}

// LogUpdate appends a note and optionally moves the issue to a new status.
func (s *IssueService) LogUpdate(ctx context.Context, actor models.Actor, id int64, in LogInput) (*models.IssueUpdate, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	notes := strings.TrimSpace(in.Notes)
	if !minLength(notes, minNotesLength) {
		verr.Add("notes", fmt.Sprintf("Notes must be at least %d characters.", minNotesLength))
	}
	var status *models.IssueStatus
	if raw := trimmedOrNil(in.Status); raw != nil {
		st := models.IssueStatus(strings.ToUpper(*raw))
		if !st.Valid() {
			verr.Add("status", "Unknown issue status.")
		}
		status = &st
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	entry := &models.IssueUpdate{
		IssueID:    id,
		AuthorID:   actor.UserID,
		AuthorName: actor.Name,
		Notes:      notes,
		Status:     status,
	}
	if err := s.repo.AppendIssueUpdate(ctx, entry); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Int64("issue_id", id).Msg("failed to log issue update")
		return nil, fmt.Errorf("log issue update: %w", err)
	}

	if status != nil {
		issue.Status = *status
	}
	s.publishEvent(events.EventIssueUpdated, issue, actor, notes)
	return entry, nil
}

// Delete removes the issue and its log. Admins only.
func (s *IssueService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteIssue(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error().Err(err).Int64("issue_id", id).Msg("failed to delete issue")
		return fmt.Errorf("delete issue: %w", err)
	}

	s.logger.Info().Int64("issue_id", id).Int64("admin_id", actor.UserID).Msg("issue deleted")
	s.publishEvent(events.EventIssueDeleted, issue, actor, "")
	return nil
}

func (s *IssueService) publishEvent(eventType string, issue *models.Issue, actor models.Actor, notes string) {
	if s.eventBus == nil {
		return
	}
	payload := events.IssueEventPayload{
		IssueID:     issue.ID,
		Title:       issue.Title,
		Status:      string(issue.Status),
		Priority:    string(issue.Priority),
		Notes:       notes,
		ChangedByID: actor.UserID,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("issue_id", issue.ID).Msg("publish event error")
	}
}
