package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// ChangeEvent is the wire shape of one document mutation. It matches the
// persisted DocumentChange row; the broadcast copy carries a freshly
// generated id and timestamp.
type ChangeEvent struct {
	ID           string                 `json:"id"`
	ResourceType models.ResourceType    `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	UserID       string                 `json:"user_id"`
	ChangeType   models.ChangeType      `json:"change_type"`
	FieldName    string                 `json:"field_name,omitempty"`
	OldValue     string                 `json:"old_value,omitempty"`
	NewValue     string                 `json:"new_value,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ChangeFeed dual-writes document mutations: one durable row in the change
// log, one live broadcast on the resource's room. The two writes are not
// transactional; persistence failure is logged prominently and the broadcast
// is still attempted, trading audit completeness for responsiveness.
type ChangeFeed struct {
	db  *gorm.DB
	bus broadcast.Broadcaster
	log *logger.Logger
}

func NewChangeFeed(db *gorm.DB, bus broadcast.Broadcaster) *ChangeFeed {
	return &ChangeFeed{db: db, bus: bus, log: logger.New("ChangeFeed")}
}

// Track assigns the event an id and timestamp, persists it, then broadcasts
// it. The broadcast is initiated after the persistence write regardless of
// the write's outcome.
func (f *ChangeFeed) Track(ctx context.Context, ev ChangeEvent) error {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now()

	var meta datatypes.JSON
	if ev.Metadata != nil {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return badRequest("invalid change metadata")
		}
		meta = datatypes.JSON(raw)
	}

	row := models.DocumentChange{
		ID:           ev.ID,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		UserID:       ev.UserID,
		ChangeType:   ev.ChangeType,
		FieldName:    ev.FieldName,
		OldValue:     ev.OldValue,
		NewValue:     ev.NewValue,
		Metadata:     meta,
		CreatedAt:    ev.CreatedAt,
	}

	if err := f.db.WithContext(ctx).Create(&row).Error; err != nil {
		// Deliberately non-fatal: the live feed stays responsive even when
		// the audit log write fails. Without this log line the divergence
		// would be silent.
		_ = f.log.Error("change log write failed, broadcasting anyway", err)
	}

	room := broadcast.RoomName(string(ev.ResourceType), ev.ResourceID)
	msg, err := broadcast.NewMessage(broadcast.KindChange, room, ev)
	if err != nil {
		return err
	}
	if err := f.bus.Publish(ctx, room, msg); err != nil {
		return f.log.Error("change broadcast failed", err)
	}
	return nil
}

// Recent returns the newest changes for a resource, newest first, joined
// with profile info for display.
func (f *ChangeFeed) Recent(ctx context.Context, resourceType models.ResourceType, resourceID string, limit int) ([]models.DocumentChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []models.DocumentChange
	err := f.db.WithContext(ctx).
		Preload("User").
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, f.log.Error("recent changes query failed", err)
	}
	return changes, nil
}

// Since returns changes after a timestamp, oldest first.
func (f *ChangeFeed) Since(ctx context.Context, resourceType models.ResourceType, resourceID string, since time.Time) ([]models.DocumentChange, error) {
	var changes []models.DocumentChange
	err := f.db.WithContext(ctx).
		Preload("User").
		Where("resource_type = ? AND resource_id = ? AND created_at > ?", resourceType, resourceID, since).
		Order("created_at ASC").
		Find(&changes).Error
	if err != nil {
		return nil, f.log.Error("changes-since query failed", err)
	}
	return changes, nil
}

// Listen registers a callback for the resource's live change broadcasts.
// The feed does not suppress self-echo; callers filter on event.UserID.
func (f *ChangeFeed) Listen(ctx context.Context, resourceType models.ResourceType, resourceID string, fn func(ChangeEvent)) (broadcast.Subscription, error) {
	room := broadcast.RoomName(string(resourceType), resourceID)
	return f.bus.Subscribe(ctx, room, func(msg broadcast.Message) {
		if msg.Kind != broadcast.KindChange {
			return
		}
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			f.log.Warn("dropping malformed change event on %s: %v", room, err)
			return
		}
		fn(ev)
	})
}

// ContentTracker coalesces rapid content edits into a single tracked change
// per quiet period. Only the final state of a burst is recorded: the first
// call's old content, the last call's new content. The pending edit is a
// single slot owned by the tracker, cancelled on Close so no timer fires
// after the caller navigated away.
type ContentTracker struct {
	feed         *ChangeFeed
	resourceType models.ResourceType
	resourceID   string
	userID       string
	debounce     time.Duration

	mu      sync.Mutex
	pending *pendingEdit
	timer   *time.Timer
	closed  bool
}

type pendingEdit struct {
	oldContent string
	newContent string
}

func NewContentTracker(feed *ChangeFeed, resourceType models.ResourceType, resourceID, userID string, debounce time.Duration) *ContentTracker {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &ContentTracker{
		feed:         feed,
		resourceType: resourceType,
		resourceID:   resourceID,
		userID:       userID,
		debounce:     debounce,
	}
}

// Track records a content edit. Each call resets the quiet-period timer;
// within a burst only the latest new content survives, anchored to the old
// content of the burst's first call.
func (t *ContentTracker) Track(oldContent, newContent string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if t.pending == nil {
		t.pending = &pendingEdit{oldContent: oldContent}
	}
	t.pending.newContent = newContent

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.flush)
}

func (t *ContentTracker) flush() {
	t.mu.Lock()
	edit := t.pending
	t.pending = nil
	t.timer = nil
	closed := t.closed
	t.mu.Unlock()

	if edit == nil || closed {
		return
	}

	ev := ChangeEvent{
		ResourceType: t.resourceType,
		ResourceID:   t.resourceID,
		UserID:       t.userID,
		ChangeType:   models.ChangeTypeUpdate,
		FieldName:    "content",
		OldValue:     edit.oldContent,
		NewValue:     edit.newContent,
		Metadata: map[string]interface{}{
			"old_length":   len(edit.oldContent),
			"new_length":   len(edit.newContent),
			"length_delta": absInt(len(edit.newContent) - len(edit.oldContent)),
		},
	}
	if err := t.feed.Track(context.Background(), ev); err != nil {
		t.feed.log.Warn("debounced content change dropped: %v", err)
	}
}

// Close cancels the pending timer. An un-flushed edit is dropped, never
// fired after teardown.
func (t *ContentTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
