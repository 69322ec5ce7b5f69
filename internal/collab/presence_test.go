package collab

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/config"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

func presenceFixture(t *testing.T) (*broadcast.RedisBroadcaster, *broadcast.PresenceStore, config.CollabConfig) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bus := broadcast.NewRedisBroadcaster(rdb)
	store := broadcast.NewPresenceStore(rdb, time.Minute)
	cfg := config.CollabConfig{
		CursorThrottle:  30 * time.Millisecond,
		TypingTimeout:   80 * time.Millisecond,
		ContentDebounce: time.Second,
		PresenceTTL:     time.Minute,
	}
	return bus, store, cfg
}

func testProfile(id, email string) models.Profile {
	return models.Profile{Base: models.Base{ID: id}, Email: email, DisplayName: email}
}

func TestSessionJoinRegistersAndExcludesSelf(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-1", testProfile("alice", "alice@example.com"))
	require.NoError(t, alice.Join(ctx))
	defer alice.Leave(ctx)

	assert.Equal(t, SessionJoined, alice.State())
	assert.Empty(t, alice.Collaborators())

	// Join published the session's own presence record.
	records, err := store.All(ctx, broadcast.RoomName("contract", "doc-1"))
	require.NoError(t, err)
	require.Contains(t, records, "alice")

	bob := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-1", testProfile("bob", "bob@example.com"))
	require.NoError(t, bob.Join(ctx))
	defer bob.Leave(ctx)

	// Bob seeded alice from the store immediately.
	bobView := bob.Collaborators()
	require.Len(t, bobView, 1)
	assert.Equal(t, "alice", bobView[0].UserID)
	assert.NotEmpty(t, bobView[0].Color)

	// Alice learns about bob from his join broadcast.
	require.Eventually(t, func() bool {
		return len(alice.Collaborators()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "bob", alice.Collaborators()[0].UserID)
}

func TestSessionLeaveWithdrawsPresence(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-2", testProfile("alice", "alice@example.com"))
	bob := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-2", testProfile("bob", "bob@example.com"))
	require.NoError(t, alice.Join(ctx))
	require.NoError(t, bob.Join(ctx))
	defer alice.Leave(ctx)

	require.Eventually(t, func() bool {
		return len(alice.Collaborators()) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Leave(ctx))
	assert.Equal(t, SessionDisconnected, bob.State())

	require.Eventually(t, func() bool {
		return len(alice.Collaborators()) == 0
	}, time.Second, 10*time.Millisecond)

	records, err := store.All(ctx, broadcast.RoomName("contract", "doc-2"))
	require.NoError(t, err)
	assert.NotContains(t, records, "bob")
}

func TestCursorUpdatesCoalesceToLatest(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-3", testProfile("alice", "alice@example.com"))
	require.NoError(t, alice.Join(ctx))
	defer alice.Leave(ctx)

	var mu sync.Mutex
	cursorUpdates := 0
	lastIndex := -1
	sub, err := bus.Subscribe(ctx, broadcast.RoomName("contract", "doc-3"), func(msg broadcast.Message) {
		if msg.Kind != broadcast.KindPresence {
			return
		}
		var ev presenceEvent
		if json.Unmarshal(msg.Payload, &ev) != nil {
			return
		}
		if ev.Event != "update" || ev.State.Cursor == nil {
			return
		}
		mu.Lock()
		cursorUpdates++
		lastIndex = ev.State.Cursor.Index
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	// A burst well inside one throttle window.
	for i := 1; i <= 5; i++ {
		require.NoError(t, alice.UpdateCursor(ctx, CursorPosition{Index: i * 10}))
	}

	// The trailing edge flushes the latest position.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastIndex == 50
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, cursorUpdates, 2, "burst of 5 should publish at most leading and trailing updates")
}

func TestSelectionMergesIntoCursor(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-4", testProfile("alice", "alice@example.com"))
	bob := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-4", testProfile("bob", "bob@example.com"))
	require.NoError(t, alice.Join(ctx))
	require.NoError(t, bob.Join(ctx))
	defer alice.Leave(ctx)
	defer bob.Leave(ctx)

	require.NoError(t, alice.UpdateCursor(ctx, CursorPosition{Index: 7}))
	require.NoError(t, alice.UpdateSelection(ctx, 3, 9))

	require.Eventually(t, func() bool {
		collabs := bob.Collaborators()
		if len(collabs) != 1 || collabs[0].Cursor == nil {
			return false
		}
		c := collabs[0].Cursor
		return c.Index == 7 && c.SelectionStart != nil && *c.SelectionStart == 3 && c.SelectionEnd != nil && *c.SelectionEnd == 9
	}, time.Second, 10*time.Millisecond)
}

func TestTypingIndicatorAutoClears(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-5", testProfile("alice", "alice@example.com"))
	bob := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-5", testProfile("bob", "bob@example.com"))
	require.NoError(t, alice.Join(ctx))
	require.NoError(t, bob.Join(ctx))
	defer alice.Leave(ctx)
	defer bob.Leave(ctx)

	require.NoError(t, alice.SetTyping(ctx, true))

	require.Eventually(t, func() bool {
		collabs := bob.Collaborators()
		return len(collabs) == 1 && collabs[0].IsTyping
	}, time.Second, 10*time.Millisecond)

	// No further input: the indicator clears itself.
	require.Eventually(t, func() bool {
		collabs := bob.Collaborators()
		return len(collabs) == 1 && !collabs[0].IsTyping
	}, time.Second, 10*time.Millisecond)
}

func TestSessionRejectsDoubleJoin(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-6", testProfile("alice", "alice@example.com"))
	assert.Equal(t, SessionDisconnected, alice.State())

	require.NoError(t, alice.Join(ctx))
	defer alice.Leave(ctx)

	err := alice.Join(ctx)
	require.Error(t, err)
}

func TestSessionChangeCallback(t *testing.T) {
	bus, store, cfg := presenceFixture(t)
	ctx := context.Background()

	alice := NewSession(bus, store, cfg, models.ResourceTypeContract, "doc-7", testProfile("alice", "alice@example.com"))
	require.NoError(t, alice.Join(ctx))
	defer alice.Leave(ctx)

	var mu sync.Mutex
	var seen []ChangeEvent
	alice.OnChange(func(ev ChangeEvent) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	room := broadcast.RoomName("contract", "doc-7")
	msg, err := broadcast.NewMessage(broadcast.KindChange, room, ChangeEvent{
		ResourceType: models.ResourceTypeContract,
		ResourceID:   "doc-7",
		UserID:       "bob",
		ChangeType:   models.ChangeTypeUpdate,
		FieldName:    "content",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, room, msg))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].UserID == "bob"
	}, time.Second, 10*time.Millisecond)
}
