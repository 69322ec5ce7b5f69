package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

type ChangeHandler struct {
	db   *gorm.DB
	feed *collab.ChangeFeed
	log  *logger.Logger
}

func NewChangeHandler(db *gorm.DB, feed *collab.ChangeFeed) *ChangeHandler {
	return &ChangeHandler{db: db, feed: feed, log: logger.New("ChangeHandler")}
}

// Recent returns a resource's change history, newest first. Access is
// enforced by the route's resource middleware.
// @Summary List recent changes
// @Tags changes
// @Produce json
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Param limit query int false "Max rows (default 50)"
// @Param since query string false "RFC3339 timestamp; returns changes after it, oldest first"
// @Success 200 {array} models.DocumentChange "Changes"
// @Failure 403 {object} map[string]string "No access"
// @Router /changes [get]
func (h *ChangeHandler) Recent(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")

	if sinceParam := c.QueryParam("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be an RFC3339 timestamp"})
		}
		changes, err := h.feed.Since(c.Request().Context(), models.ResourceType(resourceType), resourceID, since)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, changes)
	}

	limit := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}

	changes, err := h.feed.Recent(c.Request().Context(), models.ResourceType(resourceType), resourceID, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, changes)
}
