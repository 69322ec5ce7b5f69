package collab

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

func TestTrackPersistsAndBroadcasts(t *testing.T) {
	db := newTestDB(t)
	bus := &recordingBus{}
	feed := NewChangeFeed(db, bus)

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "SOW")

	err := feed.Track(context.Background(), ChangeEvent{
		ResourceType: models.ResourceTypeContract,
		ResourceID:   contract.ID,
		UserID:       owner.ID,
		ChangeType:   models.ChangeTypeUpdate,
		FieldName:    "title",
		OldValue:     "SOW",
		NewValue:     "SOW v2",
	})
	require.NoError(t, err)

	var row models.DocumentChange
	require.NoError(t, db.Where("resource_id = ?", contract.ID).First(&row).Error)
	assert.Equal(t, "SOW v2", row.NewValue)
	assert.NotEmpty(t, row.ID)

	published := bus.byKind(broadcast.KindChange)
	require.Len(t, published, 1)
	assert.Equal(t, broadcast.RoomName("contract", contract.ID), published[0].Room)

	var ev ChangeEvent
	require.NoError(t, json.Unmarshal(published[0].Payload, &ev))
	assert.Equal(t, row.ID, ev.ID)
	assert.Equal(t, "title", ev.FieldName)
}

func TestRecentAndSinceOrdering(t *testing.T) {
	db := newTestDB(t)
	feed := NewChangeFeed(db, &recordingBus{})

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "SOW")

	base := time.Now().Add(-time.Hour)
	for i, field := range []string{"first", "second", "third"} {
		row := models.DocumentChange{
			ResourceType: models.ResourceTypeContract,
			ResourceID:   contract.ID,
			UserID:       owner.ID,
			ChangeType:   models.ChangeTypeUpdate,
			FieldName:    field,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&row).Error)
	}

	recent, err := feed.Recent(context.Background(), models.ResourceTypeContract, contract.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].FieldName)
	assert.Equal(t, "second", recent[1].FieldName)

	since, err := feed.Since(context.Background(), models.ResourceTypeContract, contract.ID, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "second", since[0].FieldName)
	assert.Equal(t, "third", since[1].FieldName)
}

func TestContentTrackerCoalescesBurst(t *testing.T) {
	db := newTestDB(t)
	bus := &recordingBus{}
	feed := NewChangeFeed(db, bus)

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "SOW")

	tracker := NewContentTracker(feed, models.ResourceTypeContract, contract.ID, owner.ID, 40*time.Millisecond)
	defer tracker.Close()

	tracker.Track("v1", "v2")
	tracker.Track("v2", "v3")
	tracker.Track("v3", "final")

	require.Eventually(t, func() bool {
		return changeCount(t, db, contract.ID) == 1
	}, time.Second, 10*time.Millisecond)

	var row models.DocumentChange
	require.NoError(t, db.Where("resource_id = ?", contract.ID).First(&row).Error)
	assert.Equal(t, "v1", row.OldValue)
	assert.Equal(t, "final", row.NewValue)
	assert.Equal(t, "content", row.FieldName)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(row.Metadata, &meta))
	assert.EqualValues(t, 2, meta["old_length"])
	assert.EqualValues(t, 5, meta["new_length"])
}

func TestContentTrackerSeparateBursts(t *testing.T) {
	db := newTestDB(t)
	feed := NewChangeFeed(db, &recordingBus{})

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "SOW")

	tracker := NewContentTracker(feed, models.ResourceTypeContract, contract.ID, owner.ID, 20*time.Millisecond)
	defer tracker.Close()

	tracker.Track("a", "b")
	require.Eventually(t, func() bool {
		return changeCount(t, db, contract.ID) == 1
	}, time.Second, 5*time.Millisecond)

	tracker.Track("b", "c")
	require.Eventually(t, func() bool {
		return changeCount(t, db, contract.ID) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestContentTrackerCloseDropsPending(t *testing.T) {
	db := newTestDB(t)
	feed := NewChangeFeed(db, &recordingBus{})

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "SOW")

	tracker := NewContentTracker(feed, models.ResourceTypeContract, contract.ID, owner.ID, 30*time.Millisecond)
	tracker.Track("before", "after")
	tracker.Close()

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, changeCount(t, db, contract.ID))
}
