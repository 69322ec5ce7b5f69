package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/api/middleware"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

type ShareHandler struct {
	db     *gorm.DB
	shares *collab.ShareService
	log    *logger.Logger
}

func NewShareHandler(db *gorm.DB, shares *collab.ShareService) *ShareHandler {
	return &ShareHandler{db: db, shares: shares, log: logger.New("ShareHandler")}
}

type CreateShareRequest struct {
	ResourceType    string     `json:"resourceType" validate:"required,resource_type"`
	ResourceID      string     `json:"resourceId" validate:"required,uuid"`
	SharedWithEmail string     `json:"sharedWithEmail" validate:"required,email"`
	Permission      string     `json:"permission" validate:"required,permission_level"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

type UpdateShareRequest struct {
	Permission *string    `json:"permission" validate:"omitempty,permission_level"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// Create grants a user access to a resource by email.
// @Summary Share a resource
// @Description Grant a user access to a resource, or update their existing grant
// @Tags shares
// @Accept json
// @Produce json
// @Param request body CreateShareRequest true "Share details"
// @Success 201 {object} models.Share "Share created"
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Admin permission required"
// @Failure 404 {object} map[string]string "No user with that email"
// @Router /shares [post]
func (h *ShareHandler) Create(c echo.Context) error {
	var req CreateShareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	share, err := h.shares.Create(c.Request().Context(), middleware.GetUserID(c), collab.CreateShareInput{
		ResourceType:    models.ResourceType(req.ResourceType),
		ResourceID:      req.ResourceID,
		SharedWithEmail: req.SharedWithEmail,
		Permission:      models.Permission(req.Permission),
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, share)
}

// Update changes a share's permission or expiry.
// @Summary Update a share
// @Tags shares
// @Accept json
// @Produce json
// @Param id path string true "Share ID"
// @Param request body UpdateShareRequest true "Fields to update"
// @Success 200 {object} models.Share "Updated share"
// @Failure 403 {object} map[string]string "Admin permission required"
// @Failure 404 {object} map[string]string "Share not found"
// @Router /shares/{id} [put]
func (h *ShareHandler) Update(c echo.Context) error {
	var req UpdateShareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	in := collab.UpdateShareInput{ExpiresAt: req.ExpiresAt}
	if req.Permission != nil {
		p := models.Permission(*req.Permission)
		in.Permission = &p
	}

	share, err := h.shares.Update(c.Request().Context(), middleware.GetUserID(c), c.Param("id"), in)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, share)
}

// Delete revokes a share.
// @Summary Revoke a share
// @Tags shares
// @Produce json
// @Param id path string true "Share ID"
// @Success 200 {object} map[string]string "Share revoked"
// @Failure 403 {object} map[string]string "Not allowed"
// @Failure 404 {object} map[string]string "Share not found"
// @Router /shares/{id} [delete]
func (h *ShareHandler) Delete(c echo.Context) error {
	if err := h.shares.Delete(c.Request().Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "share revoked"})
}

// ListByResource lists all shares on a resource.
// @Summary List a resource's shares
// @Tags shares
// @Produce json
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Success 200 {array} models.Share "Shares"
// @Failure 403 {object} map[string]string "No access"
// @Router /shares [get]
func (h *ShareHandler) ListByResource(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	if !models.IsValidResourceType(resourceType) || resourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "resourceType and resourceId are required"})
	}

	shares, err := h.shares.ListByResource(c.Request().Context(), middleware.GetUserID(c), models.ResourceType(resourceType), resourceID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, shares)
}

// SharedWithMe lists resources shared with the current user.
// @Summary List resources shared with me
// @Tags shares
// @Produce json
// @Param resourceType query string false "Filter by resource type"
// @Param permission query string false "Filter by permission"
// @Success 200 {array} models.Share "Shares"
// @Router /shares/shared-with-me [get]
func (h *ShareHandler) SharedWithMe(c echo.Context) error {
	typeFilter := c.QueryParam("resourceType")
	if typeFilter != "" && !models.IsValidResourceType(typeFilter) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid resource type"})
	}
	permFilter := c.QueryParam("permission")
	if permFilter != "" && !models.IsValidPermission(permFilter) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid permission"})
	}

	shares, err := h.shares.SharedWithMe(c.Request().Context(), middleware.GetUserID(c),
		models.ResourceType(typeFilter), models.Permission(permFilter))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, shares)
}

// MyShares lists shares the current user has granted.
// @Summary List shares I granted
// @Tags shares
// @Produce json
// @Param resourceType query string false "Filter by resource type"
// @Success 200 {array} models.Share "Shares"
// @Router /shares/my-shares [get]
func (h *ShareHandler) MyShares(c echo.Context) error {
	typeFilter := c.QueryParam("resourceType")
	if typeFilter != "" && !models.IsValidResourceType(typeFilter) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid resource type"})
	}

	shares, err := h.shares.MyShares(c.Request().Context(), middleware.GetUserID(c), models.ResourceType(typeFilter))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, shares)
}

// SearchUsers finds share candidates for a resource.
// @Summary Search users to share with
// @Tags shares
// @Produce json
// @Param q query string true "Search query"
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Success 200 {array} collab.UserSearchResult "Candidates"
// @Failure 403 {object} map[string]string "Admin permission required"
// @Router /shares/search-users [get]
func (h *ShareHandler) SearchUsers(c echo.Context) error {
	q := c.QueryParam("q")
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	if q == "" || !models.IsValidResourceType(resourceType) || resourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q, resourceType and resourceId are required"})
	}

	results, err := h.shares.SearchUsers(c.Request().Context(), middleware.GetUserID(c), q,
		models.ResourceType(resourceType), resourceID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, results)
}
