package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/api/middleware"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/tasks/rate"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

type RequestHandler struct {
	db       *gorm.DB
	requests *collab.RequestService
	limiter  *rate.SlidingWindowLimiter
	log      *logger.Logger
}

func NewRequestHandler(db *gorm.DB, requests *collab.RequestService, limiter *rate.SlidingWindowLimiter) *RequestHandler {
	return &RequestHandler{db: db, requests: requests, limiter: limiter, log: logger.New("RequestHandler")}
}

type CreateAccessRequestRequest struct {
	ResourceType        string `json:"resourceType" validate:"required,resource_type"`
	ResourceID          string `json:"resourceId" validate:"required,uuid"`
	RequestedPermission string `json:"requestedPermission" validate:"required,oneof=view edit"`
	Message             string `json:"message" validate:"max=1000"`
}

type ResolveAccessRequestRequest struct {
	Status     string `json:"status" validate:"required,request_status"`
	Permission string `json:"permission" validate:"omitempty,permission_level"`
}

// Create files an access request for a resource the user cannot reach.
// @Summary Request access to a resource
// @Tags access-requests
// @Accept json
// @Produce json
// @Param request body CreateAccessRequestRequest true "Request details"
// @Success 201 {object} models.AccessRequest "Request filed"
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Resource not found"
// @Failure 409 {object} map[string]string "Already shared or already pending"
// @Failure 429 {object} map[string]string "Too many requests"
// @Router /access-requests [post]
func (h *RequestHandler) Create(c echo.Context) error {
	var req CreateAccessRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID := middleware.GetUserID(c)

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request().Context(), userID)
		if err != nil {
			h.log.Warn("rate limit check failed, allowing request: %v", err)
		} else if !allowed {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many access requests, try again later"})
		}
	}

	request, err := h.requests.Create(c.Request().Context(), userID, collab.CreateRequestInput{
		ResourceType:        models.ResourceType(req.ResourceType),
		ResourceID:          req.ResourceID,
		RequestedPermission: models.Permission(req.RequestedPermission),
		Message:             req.Message,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, request)
}

// List returns requests the user filed or must decide.
// @Summary List access requests
// @Tags access-requests
// @Produce json
// @Param status query string false "Filter by status (pending, approved, denied)"
// @Success 200 {array} models.AccessRequest "Requests"
// @Router /access-requests [get]
func (h *RequestHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != string(models.RequestStatusPending) &&
		status != string(models.RequestStatusApproved) && status != string(models.RequestStatusDenied) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
	}

	requests, err := h.requests.List(c.Request().Context(), middleware.GetUserID(c), models.RequestStatus(status))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, requests)
}

// Resolve approves or denies a pending request.
// @Summary Resolve an access request
// @Tags access-requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body ResolveAccessRequestRequest true "Decision"
// @Success 200 {object} models.AccessRequest "Resolved request"
// @Failure 403 {object} map[string]string "Only the resource owner can resolve"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Already resolved"
// @Router /access-requests/{id} [put]
func (h *RequestHandler) Resolve(c echo.Context) error {
	var req ResolveAccessRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	request, err := h.requests.Resolve(c.Request().Context(), middleware.GetUserID(c), c.Param("id"),
		models.RequestStatus(req.Status), models.Permission(req.Permission))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, request)
}
