package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/api/middleware"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

type CommentHandler struct {
	db       *gorm.DB
	comments *collab.CommentService
	log      *logger.Logger
}

func NewCommentHandler(db *gorm.DB, comments *collab.CommentService) *CommentHandler {
	return &CommentHandler{db: db, comments: comments, log: logger.New("CommentHandler")}
}

type CreateCommentRequest struct {
	ResourceType   string  `json:"resourceType" validate:"required,resource_type"`
	ResourceID     string  `json:"resourceId" validate:"required,uuid"`
	Content        string  `json:"content" validate:"required,max=10000"`
	SelectionStart *int    `json:"selectionStart" validate:"omitempty,min=0"`
	SelectionEnd   *int    `json:"selectionEnd" validate:"omitempty,min=0"`
	ParentID       *string `json:"parentId" validate:"omitempty,uuid"`
}

type UpdateCommentRequest struct {
	Content  *string `json:"content" validate:"omitempty,max=10000"`
	Resolved *bool   `json:"resolved"`
}

// Create posts a comment or reply on a resource.
// @Summary Create a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param request body CreateCommentRequest true "Comment details"
// @Success 201 {object} models.Comment "Comment created"
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "No access"
// @Failure 404 {object} map[string]string "Parent comment not found"
// @Router /comments [post]
func (h *CommentHandler) Create(c echo.Context) error {
	var req CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	comment, err := h.comments.Create(c.Request().Context(), middleware.GetUserID(c), collab.CreateCommentInput{
		ResourceType:   models.ResourceType(req.ResourceType),
		ResourceID:     req.ResourceID,
		Content:        req.Content,
		SelectionStart: req.SelectionStart,
		SelectionEnd:   req.SelectionEnd,
		ParentID:       req.ParentID,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// List returns a resource's comment threads.
// @Summary List comments
// @Tags comments
// @Produce json
// @Param resourceType query string true "Resource type"
// @Param resourceId query string true "Resource ID"
// @Param includeResolved query bool false "Include resolved threads"
// @Success 200 {array} models.Comment "Threads, replies nested"
// @Failure 403 {object} map[string]string "No access"
// @Router /comments [get]
func (h *CommentHandler) List(c echo.Context) error {
	resourceType := c.QueryParam("resourceType")
	resourceID := c.QueryParam("resourceId")
	if !models.IsValidResourceType(resourceType) || resourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "resourceType and resourceId are required"})
	}
	includeResolved := c.QueryParam("includeResolved") == "true"

	comments, err := h.comments.ListByResource(c.Request().Context(), middleware.GetUserID(c),
		models.ResourceType(resourceType), resourceID, includeResolved)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}

// Update edits or resolves a comment.
// @Summary Update a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body UpdateCommentRequest true "Fields to update"
// @Success 200 {object} models.Comment "Updated comment"
// @Failure 403 {object} map[string]string "Not allowed"
// @Failure 404 {object} map[string]string "Comment not found"
// @Router /comments/{id} [put]
func (h *CommentHandler) Update(c echo.Context) error {
	var req UpdateCommentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	comment, err := h.comments.Update(c.Request().Context(), middleware.GetUserID(c), c.Param("id"),
		collab.UpdateCommentInput{Content: req.Content, Resolved: req.Resolved})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, comment)
}

// Delete removes a comment and its replies.
// @Summary Delete a comment
// @Tags comments
// @Produce json
// @Param id path string true "Comment ID"
// @Success 200 {object} map[string]string "Comment deleted"
// @Failure 403 {object} map[string]string "Only the author can delete"
// @Failure 404 {object} map[string]string "Comment not found"
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c echo.Context) error {
	if err := h.comments.Delete(c.Request().Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "comment deleted"})
}
