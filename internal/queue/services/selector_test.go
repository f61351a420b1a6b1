package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

func laneOf(statuses ...models.Status) []*models.QueueEntry {
	base := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	out := make([]*models.QueueEntry, len(statuses))
	for i, st := range statuses {
		e := newEntry(string(rune('a'+i)), models.LaneRegular, i+1, base.Add(time.Duration(i)*time.Minute))
		e.Status = st
		out[i] = e
	}
	return out
}

func TestSelectLane_Empty(t *testing.T) {
	view := SelectLane(models.LaneRegular, nil)
	assert.Nil(t, view.Current)
	assert.Nil(t, view.Next1)
	assert.Nil(t, view.Next2)
	assert.Empty(t, view.Waiting)
	assert.NotNil(t, view.Waiting, "waiting serializes as [] not null")
}

func TestSelectLane_OnlyInProgress(t *testing.T) {
	view := SelectLane(models.LaneRegular, laneOf(models.StatusInProgress))
	require.NotNil(t, view.Current)
	assert.Equal(t, "a", view.Current.ID)
	assert.Nil(t, view.Next1)
	assert.Nil(t, view.Next2)
}

func TestSelectLane_DefaultsToEarliestWaiting(t *testing.T) {
	view := SelectLane(models.LaneRegular, laneOf(models.StatusWaiting, models.StatusWaiting, models.StatusWaiting, models.StatusWaiting))
	assert.Equal(t, "a", view.Current.ID)
	assert.Equal(t, "b", view.Next1.ID)
	assert.Equal(t, "c", view.Next2.ID)
	require.Len(t, view.Waiting, 3, "fourth patient is still listed")
	assert.Equal(t, "d", view.Waiting[2].ID)
}

func TestSelectLane_InProgressWins(t *testing.T) {
	view := SelectLane(models.LaneRegular, laneOf(models.StatusWaiting, models.StatusInProgress, models.StatusWaiting))
	assert.Equal(t, "b", view.Current.ID)
	assert.Equal(t, "c", view.Next1.ID, "next entries come after current")
	assert.Nil(t, view.Next2)
	require.Len(t, view.Waiting, 2)
	assert.Equal(t, "a", view.Waiting[0].ID, "skipped entry stays visible")
}

func TestDisplayList(t *testing.T) {
	live := laneOf(models.StatusInProgress, models.StatusWaiting)
	live[1].PatientID = "P-1"

	list := DisplayList(live)
	require.Len(t, list, 2)
	assert.Equal(t, models.StatusInProgress, list[0].Status)
	assert.True(t, list[0].IsNewPatient)
	assert.False(t, list[1].IsNewPatient)
	assert.NotNil(t, DisplayList(nil))
}
