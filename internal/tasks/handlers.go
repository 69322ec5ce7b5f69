package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	db          *gorm.DB
	logger      *logger.Logger
	shares      *collab.ShareService
	presence    *broadcast.PresenceStore
	presenceTTL time.Duration
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(db *gorm.DB, shares *collab.ShareService, presence *broadcast.PresenceStore, presenceTTL time.Duration) *TaskHandler {
	return &TaskHandler{
		db:          db,
		logger:      logger.New("task_handler"),
		shares:      shares,
		presence:    presence,
		presenceTTL: presenceTTL,
	}
}

// HandleShareExpirySweep deletes shares past their expiry timestamp.
func (h *TaskHandler) HandleShareExpirySweep(ctx context.Context, t *asynq.Task) error {
	removed, err := h.shares.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("share expiry sweep failed: %w", err)
	}
	if removed > 0 {
		h.logger.Info("share expiry sweep removed %d shares", removed)
	}
	return nil
}

// HandlePresenceSweep drops presence records that stopped refreshing, so a
// crashed client does not linger in the room snapshot.
func (h *TaskHandler) HandlePresenceSweep(ctx context.Context, t *asynq.Task) error {
	removed, err := h.presence.Sweep(ctx, h.presenceTTL)
	if err != nil {
		return fmt.Errorf("presence sweep failed: %w", err)
	}
	if removed > 0 {
		h.logger.Info("presence sweep removed %d stale records", removed)
	}
	return nil
}

// HandleNotify forwards one notification. Delivery transports live upstream;
// here the event is logged as handed off.
func (h *TaskHandler) HandleNotify(ctx context.Context, t *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %w", err)
	}

	h.logger.Info("notify event=%s actor=%s target=%s resource=%s/%s",
		payload.Event, payload.ActorID, payload.TargetUserID, payload.ResourceType, payload.ResourceID)
	return nil
}
