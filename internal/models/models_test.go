package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestHasConflict(t *testing.T) {
	existing := []*Booking{
		{ID: 1, StartDate: day(1), EndDate: day(3), Status: BookingApproved},
	}

	t.Run("Overlapping", func(t *testing.T) {
		assert.True(t, HasConflict(day(2), day(4), existing))
	})

	t.Run("BackToBack", func(t *testing.T) {
		assert.False(t, HasConflict(day(3), day(5), existing))
		assert.False(t, HasConflict(time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), day(1), existing))
	})

	t.Run("Enclosing", func(t *testing.T) {
		assert.True(t, HasConflict(time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), day(10), existing))
		assert.True(t, HasConflict(day(1).Add(time.Hour), day(2), existing))
	})

	t.Run("InactiveIgnored", func(t *testing.T) {
		inactive := []*Booking{
			{ID: 2, StartDate: day(1), EndDate: day(3), Status: BookingDeclined},
			{ID: 3, StartDate: day(1), EndDate: day(3), Status: BookingCancelled},
			nil,
		}
		assert.False(t, HasConflict(day(1), day(3), inactive))
	})

	t.Run("PendingBlocks", func(t *testing.T) {
		pending := []*Booking{{ID: 4, StartDate: day(10), EndDate: day(12), Status: BookingPending}}
		assert.True(t, HasConflict(day(11), day(13), pending))
	})

	t.Run("EmptySnapshot", func(t *testing.T) {
		assert.False(t, HasConflict(day(1), day(2), nil))
	})
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, BookingPending.Active())
	assert.True(t, BookingApproved.Active())
	assert.False(t, BookingDeclined.Active())
	assert.False(t, BookingStatus("bogus").Valid())

	assert.True(t, IssueBlocked.Valid())
	assert.True(t, IssueClosed.Done())
	assert.False(t, IssueInProgress.Done())

	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.False(t, IssuePriority("URGENT").Valid())
}

func TestOptional(t *testing.T) {
	var payload struct {
		AssignedToID Optional[int64]  `json:"assigned_to_id"`
		Location     Optional[string] `json:"location"`
		Title        Optional[string] `json:"title"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"assigned_to_id": null, "location": "Loft"}`), &payload))

	assert.True(t, payload.AssignedToID.Set)
	assert.Nil(t, payload.AssignedToID.Value)
	assert.True(t, payload.Location.Present())
	assert.Equal(t, "Loft", *payload.Location.Value)
	assert.False(t, payload.Title.Set)
}

func TestActor(t *testing.T) {
	anon := Anonymous()
	assert.False(t, anon.Authenticated())
	assert.False(t, anon.IsAdmin())
	assert.Nil(t, anon.UserRef())

	admin := Actor{UserID: 7, Role: RoleAdmin}
	assert.True(t, admin.IsAdmin())
	require.NotNil(t, admin.UserRef())
	assert.Equal(t, int64(7), *admin.UserRef())
}
