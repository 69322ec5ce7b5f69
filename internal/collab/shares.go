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

// ShareService manages share records. Every mutation is gated through the
// access service first and mirrored onto the resource's change feed.
type ShareService struct {
	db     *gorm.DB
	access *AccessService
	feed   *ChangeFeed
	log    *logger.Logger
}

func NewShareService(db *gorm.DB, access *AccessService, feed *ChangeFeed) *ShareService {
	return &ShareService{db: db, access: access, feed: feed, log: logger.New("ShareService")}
}

type CreateShareInput struct {
	ResourceType    models.ResourceType
	ResourceID      string
	SharedWithEmail string
	Permission      models.Permission
	ExpiresAt       *time.Time
}

// Create grants or refreshes a share. The (resource_type, resource_id,
// shared_with) key is unique; a duplicate create updates the existing row
// in place via an atomic upsert, closing the check-then-insert race.
func (s *ShareService) Create(ctx context.Context, actorID string, in CreateShareInput) (*models.Share, error) {
	if _, err := s.access.requireAccess(ctx, actorID, in.ResourceType, in.ResourceID, models.PermissionAdmin); err != nil {
		return nil, err
	}

	var grantee models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", in.SharedWithEmail).First(&grantee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no user found with that email")
		}
		return nil, s.log.Error("grantee lookup failed", err)
	}
	if grantee.ID == actorID {
		return nil, badRequest("you cannot share a resource with yourself")
	}

	share := models.Share{
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		SharedBy:     actorID,
		SharedWith:   grantee.ID,
		Permission:   in.Permission,
		ExpiresAt:    in.ExpiresAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "resource_type"},
			{Name: "resource_id"},
			{Name: "shared_with"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "shared_by", "expires_at", "updated_at"}),
	}).Create(&share).Error
	if err != nil {
		return nil, s.log.Error("share upsert failed", err)
	}

	// Re-read so the caller sees the surviving row, not the insert attempt.
	if err := s.db.WithContext(ctx).
		Preload("SharedByProfile").
		Preload("SharedWithProfile").
		Where("resource_type = ? AND resource_id = ? AND shared_with = ?", in.ResourceType, in.ResourceID, grantee.ID).
		First(&share).Error; err != nil {
		return nil, s.log.Error("share reload failed", err)
	}

	if err := s.feed.Track(ctx, ChangeEvent{
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		UserID:       actorID,
		ChangeType:   models.ChangeTypeCreate,
		FieldName:    "share",
		NewValue:     grantee.Email,
		Metadata: map[string]interface{}{
			"shared_with": grantee.ID,
			"permission":  string(in.Permission),
		},
	}); err != nil {
		s.log.Warn("share change event dropped: %v", err)
	}

	return &share, nil
}

type UpdateShareInput struct {
	Permission *models.Permission
	ExpiresAt  *time.Time
}

// Update mutates a share's permission or expiry. Owner or admin-permission
// holders only.
func (s *ShareService) Update(ctx context.Context, actorID, shareID string, in UpdateShareInput) (*models.Share, error) {
	share, err := s.getShare(ctx, shareID)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.requireAccess(ctx, actorID, share.ResourceType, share.ResourceID, models.PermissionAdmin); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	oldPermission := share.Permission
	if in.Permission != nil {
		updates["permission"] = *in.Permission
	}
	if in.ExpiresAt != nil {
		updates["expires_at"] = *in.ExpiresAt
	}
	if len(updates) == 0 {
		return nil, badRequest("nothing to update")
	}

	if err := s.db.WithContext(ctx).Model(share).Updates(updates).Error; err != nil {
		return nil, s.log.Error("share update failed", err)
	}

	if in.Permission != nil {
		if err := s.feed.Track(ctx, ChangeEvent{
			ResourceType: share.ResourceType,
			ResourceID:   share.ResourceID,
			UserID:       actorID,
			ChangeType:   models.ChangeTypeUpdate,
			FieldName:    "share",
			OldValue:     string(oldPermission),
			NewValue:     string(*in.Permission),
			Metadata:     map[string]interface{}{"shared_with": share.SharedWith},
		}); err != nil {
			s.log.Warn("share change event dropped: %v", err)
		}
	}

	return s.getShare(ctx, shareID)
}

// Delete removes a share. Allowed for the owner, an admin-permission holder,
// or the grantee removing themselves.
func (s *ShareService) Delete(ctx context.Context, actorID, shareID string) error {
	share, err := s.getShare(ctx, shareID)
	if err != nil {
		return err
	}

	if share.SharedWith != actorID {
		if _, err := s.access.requireAccess(ctx, actorID, share.ResourceType, share.ResourceID, models.PermissionAdmin); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.Share{}, "id = ?", share.ID).Error; err != nil {
		return s.log.Error("share delete failed", err)
	}

	if err := s.feed.Track(ctx, ChangeEvent{
		ResourceType: share.ResourceType,
		ResourceID:   share.ResourceID,
		UserID:       actorID,
		ChangeType:   models.ChangeTypeDelete,
		FieldName:    "share",
		Metadata:     map[string]interface{}{"shared_with": share.SharedWith},
	}); err != nil {
		s.log.Warn("share change event dropped: %v", err)
	}

	return nil
}

// ListByResource returns a resource's shares. Any share or ownership grants
// visibility into the resource's collaboration state.
func (s *ShareService) ListByResource(ctx context.Context, actorID string, resourceType models.ResourceType, resourceID string) ([]models.Share, error) {
	if _, err := s.access.requireAccess(ctx, actorID, resourceType, resourceID, models.PermissionView); err != nil {
		return nil, err
	}

	var shares []models.Share
	err := s.db.WithContext(ctx).
		Preload("SharedByProfile").
		Preload("SharedWithProfile").
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&shares).Error
	if err != nil {
		return nil, s.log.Error("share list failed", err)
	}
	return shares, nil
}

// SharedWithMe lists shares granted to the user, optionally filtered by
// resource type or permission, with resource titles resolved for display.
func (s *ShareService) SharedWithMe(ctx context.Context, userID string, typeFilter models.ResourceType, permissionFilter models.Permission) ([]models.Share, error) {
	query := s.db.WithContext(ctx).
		Preload("SharedByProfile").
		Where("shared_with = ?", userID)
	if typeFilter != "" {
		query = query.Where("resource_type = ?", typeFilter)
	}
	if permissionFilter != "" {
		query = query.Where("permission = ?", permissionFilter)
	}

	var shares []models.Share
	if err := query.Order("created_at DESC").Find(&shares).Error; err != nil {
		return nil, s.log.Error("shared-with-me query failed", err)
	}
	s.resolveTitles(ctx, shares)
	return shares, nil
}

// MyShares lists shares the user has granted to others.
func (s *ShareService) MyShares(ctx context.Context, userID string, typeFilter models.ResourceType) ([]models.Share, error) {
	query := s.db.WithContext(ctx).
		Preload("SharedWithProfile").
		Where("shared_by = ?", userID)
	if typeFilter != "" {
		query = query.Where("resource_type = ?", typeFilter)
	}

	var shares []models.Share
	if err := query.Order("created_at DESC").Find(&shares).Error; err != nil {
		return nil, s.log.Error("my-shares query failed", err)
	}
	s.resolveTitles(ctx, shares)
	return shares, nil
}

// UserSearchResult annotates a profile with its current share state on the
// resource the search is scoped to.
type UserSearchResult struct {
	models.Profile
	IsAlreadyShared   bool               `json:"isAlreadyShared"`
	CurrentPermission *models.Permission `json:"currentPermission,omitempty"`
}

// SearchUsers finds share candidates by email or display name. Gated at
// admin because its only consumer is the share dialog.
func (s *ShareService) SearchUsers(ctx context.Context, actorID, q string, resourceType models.ResourceType, resourceID string) ([]UserSearchResult, error) {
	if _, err := s.access.requireAccess(ctx, actorID, resourceType, resourceID, models.PermissionAdmin); err != nil {
		return nil, err
	}

	pattern := "%" + q + "%"
	var profiles []models.Profile
	err := s.db.WithContext(ctx).
		Where("(email LIKE ? OR display_name LIKE ?) AND id <> ?", pattern, pattern, actorID).
		Limit(20).
		Find(&profiles).Error
	if err != nil {
		return nil, s.log.Error("user search failed", err)
	}

	var shares []models.Share
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Find(&shares).Error; err != nil {
		return nil, s.log.Error("user search share lookup failed", err)
	}
	current := make(map[string]models.Permission, len(shares))
	for _, share := range shares {
		current[share.SharedWith] = share.Permission
	}

	results := make([]UserSearchResult, 0, len(profiles))
	for _, p := range profiles {
		r := UserSearchResult{Profile: p}
		if perm, ok := current[p.ID]; ok {
			r.IsAlreadyShared = true
			permCopy := perm
			r.CurrentPermission = &permCopy
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteExpired removes shares past their expiry and records one change per
// removal. Driven by the scheduled sweep task.
func (s *ShareService) DeleteExpired(ctx context.Context) (int, error) {
	var expired []models.Share
	if err := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Find(&expired).Error; err != nil {
		return 0, s.log.Error("expired share query failed", err)
	}

	for _, share := range expired {
		if err := s.db.WithContext(ctx).Delete(&models.Share{}, "id = ?", share.ID).Error; err != nil {
			return 0, s.log.Error("expired share delete failed", err)
		}
		if err := s.feed.Track(ctx, ChangeEvent{
			ResourceType: share.ResourceType,
			ResourceID:   share.ResourceID,
			UserID:       share.SharedBy,
			ChangeType:   models.ChangeTypeDelete,
			FieldName:    "share",
			Metadata: map[string]interface{}{
				"shared_with": share.SharedWith,
				"reason":      "expired",
			},
		}); err != nil {
			s.log.Warn("expiry change event dropped: %v", err)
		}
	}
	return len(expired), nil
}

func (s *ShareService) getShare(ctx context.Context, shareID string) (*models.Share, error) {
	var share models.Share
	err := s.db.WithContext(ctx).
		Preload("SharedByProfile").
		Preload("SharedWithProfile").
		First(&share, "id = ?", shareID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("share not found")
		}
		return nil, s.log.Error("share lookup failed", err)
	}
	return &share, nil
}

func (s *ShareService) resolveTitles(ctx context.Context, shares []models.Share) {
	for i := range shares {
		desc, ok := models.DescriptorFor(shares[i].ResourceType)
		if !ok {
			continue
		}
		title, err := desc.FetchTitle(ctx, s.db, shares[i].ResourceID)
		if err != nil {
			continue // resource may have been deleted; leave the title blank
		}
		shares[i].ResourceTitle = title
	}
}
