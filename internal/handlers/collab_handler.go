package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/api/middleware"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// CollabHandler serves the cross-cutting collaboration endpoints: the access
// probe the UI calls before rendering share controls, and the presence
// snapshot for a resource's room.
type CollabHandler struct {
	db       *gorm.DB
	access   *collab.AccessService
	presence *broadcast.PresenceStore
	log      *logger.Logger
}

func NewCollabHandler(db *gorm.DB, access *collab.AccessService, presence *broadcast.PresenceStore) *CollabHandler {
	return &CollabHandler{db: db, access: access, presence: presence, log: logger.New("CollabHandler")}
}

// CheckAccess reports the caller's effective permission on a resource.
// @Summary Check resource access
// @Tags access
// @Produce json
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Success 200 {object} collab.ResourceAccess "Access result; hasAccess false when the resource is missing or unshared"
// @Failure 400 {object} map[string]string "Missing or invalid parameters"
// @Router /access/check [get]
func (h *CollabHandler) CheckAccess(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	if !models.IsValidResourceType(resourceType) || resourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "resourceType and resourceId are required"})
	}

	access, err := h.access.CheckAccess(c.Request().Context(), middleware.GetUserID(c),
		models.ResourceType(resourceType), resourceID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, access)
}

// Presence returns the current participants in a resource's room, excluding
// the caller. Access is enforced by the route's resource middleware.
// @Summary Room presence snapshot
// @Tags presence
// @Produce json
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Success 200 {array} collab.PresenceState "Remote participants"
// @Failure 403 {object} map[string]string "No access"
// @Router /presence [get]
func (h *CollabHandler) Presence(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	userID := middleware.GetUserID(c)

	room := broadcast.RoomName(resourceType, resourceID)
	raw, err := h.presence.All(c.Request().Context(), room)
	if err != nil {
		return errorJSON(c, err)
	}

	states := make([]collab.PresenceState, 0, len(raw))
	for participantID, payload := range raw {
		if participantID == userID {
			continue
		}
		var state collab.PresenceState
		if err := json.Unmarshal(payload, &state); err != nil {
			h.log.Warn("skipping unreadable presence record for %s: %v", participantID, err)
			continue
		}
		states = append(states, state)
	}
	return c.JSON(http.StatusOK, states)
}
