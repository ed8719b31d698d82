package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"cottage/internal/database"
	"cottage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newIssueService(repo *mockIssueRepo, users *mockUserRepo) *IssueService {
	logger := zerolog.New(io.Discard)
	return NewIssueService(repo, users, nil, time.UTC, &logger)
}

func sampleIssue() *models.Issue {
	return &models.Issue{
		ID:           3,
		Title:        "Leaking tap",
		Description:  "Kitchen tap drips all night",
		Priority:     models.PriorityMedium,
		Status:       models.IssueOpen,
		ReportedByID: member.UserID,
	}
}

func decodePatch(t *testing.T, body string) IssuePatch {
	t.Helper()
	var patch IssuePatch
	require.NoError(t, json.Unmarshal([]byte(body), &patch))
	return patch
}

func TestIssueCreate(t *testing.T) {
	repo := new(mockIssueRepo)
	users := new(mockUserRepo)
	svc := newIssueService(repo, users)
	pub := new(mockPublisher)
	svc.eventBus = pub
	ctx := context.Background()

	assignee := int64(1)
	users.On("UserExists", ctx, assignee).Return(true, nil).Once()
	repo.On("CreateIssueWithLog", ctx,
		mock.MatchedBy(func(i *models.Issue) bool {
			return i.Status == models.IssueOpen && i.Priority == models.PriorityHigh &&
				i.ReportedByID == member.UserID && *i.AssignedToID == assignee && i.Location == nil
		}),
		mock.MatchedBy(func(u *models.IssueUpdate) bool {
			return u.Notes == models.IssueCreatedNote && *u.Status == models.IssueOpen && u.AuthorID == member.UserID
		}),
	).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Issue).ID = 3
	}).Return(nil).Once()
	repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
	pub.On("PublishJSON", "issue_created", mock.Anything).Return(nil).Once()

	got, err := svc.Create(ctx, member, IssueInput{
		Title:        "Leaking tap",
		Description:  "Kitchen tap drips all night",
		Priority:     "high",
		Location:     strPtr("   "),
		AssignedToID: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestIssueCreate_Validation(t *testing.T) {
	repo := new(mockIssueRepo)
	users := new(mockUserRepo)
	svc := newIssueService(repo, users)
	ctx := context.Background()

	_, err := svc.Create(ctx, anonymous, IssueInput{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	ghost := int64(99)
	users.On("UserExists", ctx, ghost).Return(false, nil).Once()

	_, err = svc.Create(ctx, member, IssueInput{
		Title:        "No",
		Description:  "short",
		Priority:     "URGENT",
		TargetDate:   strPtr("someday"),
		AssignedToID: &ghost,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "description", "priority", "target_date", "assigned_to_id"} {
		assert.True(t, verr.Has(field), field)
	}
	repo.AssertNotCalled(t, "CreateIssueWithLog", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueEdit_AssigneeNullVersusOmitted(t *testing.T) {
	ctx := context.Background()

	t.Run("ExplicitNullClears", func(t *testing.T) {
		repo := new(mockIssueRepo)
		svc := newIssueService(repo, new(mockUserRepo))

		repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
		repo.On("UpdateIssue", ctx, int64(3), mock.MatchedBy(func(c models.IssueChanges) bool {
			return c.AssignedToID.Set && c.AssignedToID.Value == nil && !c.Title.Set
		}), (*models.IssueUpdate)(nil)).Return(sampleIssue(), nil).Once()

		_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"assigned_to_id": null}`))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("OmittedLeavesUntouched", func(t *testing.T) {
		repo := new(mockIssueRepo)
		svc := newIssueService(repo, new(mockUserRepo))

		repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
		repo.On("UpdateIssue", ctx, int64(3), mock.MatchedBy(func(c models.IssueChanges) bool {
			return !c.AssignedToID.Set && c.Title.Present() && *c.Title.Value == "Dripping tap"
		}), (*models.IssueUpdate)(nil)).Return(sampleIssue(), nil).Once()

		_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"title": " Dripping tap "}`))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestIssueEdit_EmptyStringClearsLocation(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
	repo.On("UpdateIssue", ctx, int64(3), mock.MatchedBy(func(c models.IssueChanges) bool {
		return c.Location.Set && c.Location.Value == nil && c.TargetDate.Set && c.TargetDate.Value == nil
	}), (*models.IssueUpdate)(nil)).Return(sampleIssue(), nil).Once()

	_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"location": "", "target_date": null}`))
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIssueEdit_StatusWritesLogEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("SynthesizedNote", func(t *testing.T) {
		repo := new(mockIssueRepo)
		svc := newIssueService(repo, new(mockUserRepo))

		repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
		repo.On("UpdateIssue", ctx, int64(3), mock.Anything, mock.MatchedBy(func(e *models.IssueUpdate) bool {
			return e != nil && e.Notes == "Status updated to RESOLVED" && *e.Status == models.IssueResolved
		})).Return(sampleIssue(), nil).Once()

		_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"status": "resolved"}`))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("NotesOnly", func(t *testing.T) {
		repo := new(mockIssueRepo)
		svc := newIssueService(repo, new(mockUserRepo))

		repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
		repo.On("UpdateIssue", ctx, int64(3), mock.MatchedBy(func(c models.IssueChanges) bool {
			return c.Empty()
		}), mock.MatchedBy(func(e *models.IssueUpdate) bool {
			return e != nil && e.Notes == "Plumber booked" && e.Status == nil
		})).Return(sampleIssue(), nil).Once()

		_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"notes": "Plumber booked"}`))
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestIssueEdit_NothingToChange(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	current := sampleIssue()
	repo.On("GetIssue", ctx, int64(3)).Return(current, nil).Once()

	got, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"notes": "  "}`))
	require.NoError(t, err)
	assert.Same(t, current, got)
	repo.AssertNotCalled(t, "UpdateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueEdit_InvalidStatus(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()

	_, err := svc.Edit(ctx, member, 3, decodePatch(t, `{"status": "DONE", "title": "ok"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("status"))
	assert.True(t, verr.Has("title"))
}

func TestIssueLogUpdate(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	_, err := svc.LogUpdate(ctx, anonymous, 3, LogInput{Notes: "hello"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	repo.On("GetIssue", ctx, int64(404)).Return(nil, database.ErrNotFound).Once()
	_, err = svc.LogUpdate(ctx, member, 404, LogInput{Notes: "x"})
	assert.ErrorIs(t, err, ErrNotFound, "existence is checked before validation")

	repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil)

	_, err = svc.LogUpdate(ctx, member, 3, LogInput{Notes: " x ", Status: strPtr("nope")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("notes"))
	assert.True(t, verr.Has("status"))

	repo.On("AppendIssueUpdate", ctx, mock.MatchedBy(func(e *models.IssueUpdate) bool {
		return e.IssueID == 3 && e.AuthorID == member.UserID && e.Notes == "Parts ordered" && *e.Status == models.IssueBlocked
	})).Return(nil).Once()

	entry, err := svc.LogUpdate(ctx, member, 3, LogInput{Notes: "Parts ordered", Status: strPtr("blocked")})
	require.NoError(t, err)
	assert.Equal(t, "Bob", entry.AuthorName)
	repo.AssertExpectations(t)
}

func TestIssueList(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	_, err := svc.List(ctx, anonymous, IssueListOptions{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.List(ctx, member, IssueListOptions{Status: "WEIRD", Order: "alphabetical"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("status"))
	assert.True(t, verr.Has("order"))

	repo.On("ListIssues", ctx, models.IssueFilter{Status: models.IssueInProgress, HideDone: true, Order: models.IssueOrderNewest}).
		Return(nil, nil).Once()

	got, err := svc.List(ctx, member, IssueListOptions{Status: "in_progress", HideClosed: true, Order: "newest"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIssueDelete(t *testing.T) {
	repo := new(mockIssueRepo)
	svc := newIssueService(repo, new(mockUserRepo))
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, anonymous, 3), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, member, 3), ErrForbidden)
	repo.AssertNotCalled(t, "GetIssue", mock.Anything, mock.Anything)

	repo.On("GetIssue", ctx, int64(3)).Return(sampleIssue(), nil).Once()
	repo.On("DeleteIssue", ctx, int64(3)).Return(nil).Once()
	require.NoError(t, svc.Delete(ctx, admin, 3))

	repo.On("GetIssue", ctx, int64(4)).Return(nil, database.ErrNotFound).Once()
	assert.ErrorIs(t, svc.Delete(ctx, admin, 4), ErrNotFound)
	repo.AssertExpectations(t)
}
