package collab

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"
)

// CommentService implements the comment thread engine: top-level comments
// with one level of replies, optional selection anchors, resolution on the
// top-level comment only.
type CommentService struct {
	db     *gorm.DB
	access *AccessService
	feed   *ChangeFeed
	log    *logger.Logger
}

func NewCommentService(db *gorm.DB, access *AccessService, feed *ChangeFeed) *CommentService {
	return &CommentService{db: db, access: access, feed: feed, log: logger.New("CommentService")}
}

type CreateCommentInput struct {
	ResourceType   models.ResourceType
	ResourceID     string
	Content        string
	SelectionStart *int
	SelectionEnd   *int
	ParentID       *string
}

// Create posts a comment or reply. Any share or ownership grants comment
// access, regardless of permission level.
func (s *CommentService) Create(ctx context.Context, actorID string, in CreateCommentInput) (*models.Comment, error) {
	if _, err := s.access.requireAccess(ctx, actorID, in.ResourceType, in.ResourceID, models.PermissionView); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		var parent models.Comment
		if err := s.db.WithContext(ctx).First(&parent, "id = ?", *in.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFound("parent comment not found")
			}
			return nil, s.log.Error("parent comment lookup failed", err)
		}
		if parent.ResourceType != in.ResourceType || parent.ResourceID != in.ResourceID {
			return nil, badRequest("parent comment belongs to a different resource")
		}
		if parent.ParentID != nil {
			return nil, badRequest("replies cannot be nested further")
		}
	}

	comment := models.Comment{
		ResourceType:   in.ResourceType,
		ResourceID:     in.ResourceID,
		UserID:         actorID,
		Content:        in.Content,
		SelectionStart: in.SelectionStart,
		SelectionEnd:   in.SelectionEnd,
		ParentID:       in.ParentID,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, s.log.Error("comment create failed", err)
	}

	if err := s.db.WithContext(ctx).Preload("User").First(&comment, "id = ?", comment.ID).Error; err != nil {
		return nil, s.log.Error("comment reload failed", err)
	}

	if err := s.feed.Track(ctx, ChangeEvent{
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		UserID:       actorID,
		ChangeType:   models.ChangeTypeComment,
		FieldName:    "comment",
		NewValue:     comment.ID,
		Metadata:     map[string]interface{}{"is_reply": in.ParentID != nil},
	}); err != nil {
		s.log.Warn("comment change event dropped: %v", err)
	}

	return &comment, nil
}

// ListByResource returns top-level comments newest-first, each with its
// replies oldest-first. When includeResolved is false only unresolved
// top-level comments are returned; reply resolution state is never checked.
func (s *CommentService) ListByResource(ctx context.Context, actorID string, resourceType models.ResourceType, resourceID string, includeResolved bool) ([]models.Comment, error) {
	if _, err := s.access.requireAccess(ctx, actorID, resourceType, resourceID, models.PermissionView); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Preload("User").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC").Preload("User")
		}).
		Where("resource_type = ? AND resource_id = ? AND parent_id IS NULL", resourceType, resourceID)
	if !includeResolved {
		query = query.Where("resolved = ?", false)
	}

	var comments []models.Comment
	if err := query.Order("created_at DESC").Find(&comments).Error; err != nil {
		return nil, s.log.Error("comment list failed", err)
	}
	return comments, nil
}

type UpdateCommentInput struct {
	Content  *string
	Resolved *bool
}

// Update partially mutates a comment. Allowed for the author, or anyone
// holding edit/admin permission (or ownership) on the parent resource.
func (s *CommentService) Update(ctx context.Context, actorID, commentID string, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != actorID {
		if _, err := s.access.requireAccess(ctx, actorID, comment.ResourceType, comment.ResourceID, models.PermissionEdit); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if in.Resolved != nil {
		updates["resolved"] = *in.Resolved
	}
	if len(updates) == 0 {
		return nil, badRequest("nothing to update")
	}

	if err := s.db.WithContext(ctx).Model(comment).Updates(updates).Error; err != nil {
		return nil, s.log.Error("comment update failed", err)
	}

	return s.getComment(ctx, commentID)
}

// Delete removes a comment and, via cascade, its replies. Author-only: even
// the resource owner cannot delete someone else's comment.
func (s *CommentService) Delete(ctx context.Context, actorID, commentID string) error {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.UserID != actorID {
		return forbidden("only the comment author can delete it")
	}

	// Cascade is declared on the foreign key but the migration runs with
	// constraints disabled, so replies are cleared explicitly too.
	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, "parent_id = ?", comment.ID).Error; err != nil {
		return s.log.Error("reply cascade delete failed", err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", comment.ID).Error; err != nil {
		return s.log.Error("comment delete failed", err)
	}
	return nil
}

func (s *CommentService) getComment(ctx context.Context, commentID string) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Preload("User").First(&comment, "id = ?", commentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("comment not found")
		}
		return nil, s.log.Error("comment lookup failed", err)
	}
	return &comment, nil
}
