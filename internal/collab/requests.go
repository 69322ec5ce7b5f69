package collab

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// RequestService runs the access-request workflow: pending -> approved or
// pending -> denied, both terminal, resolved only by the resource owner.
type RequestService struct {
	db   *gorm.DB
	feed *ChangeFeed
	log  *logger.Logger
}

func NewRequestService(db *gorm.DB, feed *ChangeFeed) *RequestService {
	return &RequestService{db: db, feed: feed, log: logger.New("RequestService")}
}

type CreateRequestInput struct {
	ResourceType        models.ResourceType
	ResourceID          string
	RequestedPermission models.Permission
	Message             string
}

// Create files an access request. The owner is resolved from the resource
// table directly since the requester, by definition, has no access yet.
// Rejected when the requester already holds a share or a pending request.
func (s *RequestService) Create(ctx context.Context, requesterID string, in CreateRequestInput) (*models.AccessRequest, error) {
	if in.RequestedPermission != models.PermissionView && in.RequestedPermission != models.PermissionEdit {
		return nil, badRequest("requested permission must be view or edit")
	}

	desc, ok := models.DescriptorFor(in.ResourceType)
	if !ok {
		return nil, badRequest("unknown resource type")
	}

	owner, err := desc.FetchOwner(ctx, s.db, in.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("resource not found")
		}
		return nil, s.log.Error("resource owner lookup failed", err)
	}
	if owner == requesterID {
		return nil, badRequest("you already own this resource")
	}

	var existingShare models.Share
	err = s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND shared_with = ?", in.ResourceType, in.ResourceID, requesterID).
		First(&existingShare).Error
	if err == nil {
		return nil, conflict("you already have access to this resource")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.log.Error("existing share lookup failed", err)
	}

	var pending models.AccessRequest
	err = s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND requested_by = ? AND status = ?",
			in.ResourceType, in.ResourceID, requesterID, models.RequestStatusPending).
		First(&pending).Error
	if err == nil {
		return nil, conflict("you already have a pending request for this resource")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.log.Error("pending request lookup failed", err)
	}

	request := models.AccessRequest{
		ResourceType:        in.ResourceType,
		ResourceID:          in.ResourceID,
		ResourceOwner:       owner,
		RequestedBy:         requesterID,
		RequestedPermission: in.RequestedPermission,
		Message:             in.Message,
		Status:              models.RequestStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, s.log.Error("access request create failed", err)
	}

	if err := s.db.WithContext(ctx).
		Preload("RequesterProfile").
		Preload("OwnerProfile").
		First(&request, "id = ?", request.ID).Error; err != nil {
		return nil, s.log.Error("access request reload failed", err)
	}

	return &request, nil
}

// List returns requests visible to the user: those they filed and those
// awaiting their decision, optionally filtered by status.
func (s *RequestService) List(ctx context.Context, userID string, statusFilter models.RequestStatus) ([]models.AccessRequest, error) {
	query := s.db.WithContext(ctx).
		Preload("RequesterProfile").
		Preload("OwnerProfile").
		Where("resource_owner = ? OR requested_by = ?", userID, userID)
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	var requests []models.AccessRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, s.log.Error("access request list failed", err)
	}

	for i := range requests {
		desc, ok := models.DescriptorFor(requests[i].ResourceType)
		if !ok {
			continue
		}
		if title, err := desc.FetchTitle(ctx, s.db, requests[i].ResourceID); err == nil {
			requests[i].ResourceTitle = title
		}
	}
	return requests, nil
}

// Resolve approves or denies a pending request. Only the resource owner may
// resolve; a non-pending request is rejected with a conflict rather than
// re-applied, so double-approval can never mint a second share or change
// record.
func (s *RequestService) Resolve(ctx context.Context, actorID, requestID string, decision models.RequestStatus, permission models.Permission) (*models.AccessRequest, error) {
	if decision != models.RequestStatusApproved && decision != models.RequestStatusDenied {
		return nil, badRequest("status must be approved or denied")
	}

	var request models.AccessRequest
	err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("access request not found")
		}
		return nil, s.log.Error("access request lookup failed", err)
	}

	if request.ResourceOwner != actorID {
		return nil, forbidden("only the resource owner can resolve this request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, conflict("request has already been resolved")
	}

	if err := s.db.WithContext(ctx).Model(&request).Update("status", decision).Error; err != nil {
		return nil, s.log.Error("access request status update failed", err)
	}

	if decision == models.RequestStatusApproved {
		granted := permission
		if granted == "" {
			granted = request.RequestedPermission
		}
		s.materializeShare(ctx, &request, granted)
	}

	if err := s.db.WithContext(ctx).
		Preload("RequesterProfile").
		Preload("OwnerProfile").
		First(&request, "id = ?", request.ID).Error; err != nil {
		return nil, s.log.Error("access request reload failed", err)
	}

	return &request, nil
}

// materializeShare turns an approval into a share upsert plus a change-feed
// entry. Failure here does not roll back the approval: the request stays
// approved and the miss is logged, an accepted at-least-once behavior.
func (s *RequestService) materializeShare(ctx context.Context, request *models.AccessRequest, permission models.Permission) {
	share := models.Share{
		ResourceType: request.ResourceType,
		ResourceID:   request.ResourceID,
		SharedBy:     request.ResourceOwner,
		SharedWith:   request.RequestedBy,
		Permission:   permission,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "resource_type"},
			{Name: "resource_id"},
			{Name: "shared_with"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "shared_by", "updated_at"}),
	}).Create(&share).Error
	if err != nil {
		_ = s.log.Error("share creation from approved request failed; request stays approved", err)
		return
	}

	if err := s.feed.Track(ctx, ChangeEvent{
		ResourceType: request.ResourceType,
		ResourceID:   request.ResourceID,
		UserID:       request.ResourceOwner,
		ChangeType:   models.ChangeTypeCreate,
		FieldName:    "share",
		Metadata: map[string]interface{}{
			"shared_with":  request.RequestedBy,
			"permission":   string(permission),
			"from_request": request.ID,
			"approved_at":  time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		s.log.Warn("approval change event dropped: %v", err)
	}
}
