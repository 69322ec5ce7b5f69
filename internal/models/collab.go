package models

import (
	"time"

	"gorm.io/datatypes"
)

// Share grants a user access to a resource. At most one share may exist per
// (resource_type, resource_id, shared_with); writers upsert on that key.
type Share struct {
	Base
	ResourceType ResourceType `gorm:"not null;uniqueIndex:idx_share_grantee" json:"resource_type" validate:"required,resource_type"`
	ResourceID   string       `gorm:"type:uuid;not null;uniqueIndex:idx_share_grantee" json:"resource_id" validate:"required,uuid"`
	SharedBy     string       `gorm:"type:uuid;not null" json:"shared_by"`
	SharedWith   string       `gorm:"type:uuid;not null;uniqueIndex:idx_share_grantee" json:"shared_with"`
	Permission   Permission   `gorm:"not null;default:'view'" json:"permission" validate:"required,permission_level"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`

	SharedByProfile   *Profile `gorm:"foreignKey:SharedBy;references:ID" json:"shared_by_profile,omitempty"`
	SharedWithProfile *Profile `gorm:"foreignKey:SharedWith;references:ID" json:"shared_with_profile,omitempty"`

	// ResourceTitle is resolved from the owning table for list views.
	ResourceTitle string `gorm:"-" json:"resource_title,omitempty"`
}

// AccessRequest asks a resource owner for a share. pending -> approved|denied,
// both terminal; only the owner may resolve.
type AccessRequest struct {
	Base
	ResourceType        ResourceType  `gorm:"not null;index:idx_request_resource" json:"resource_type" validate:"required,resource_type"`
	ResourceID          string        `gorm:"type:uuid;not null;index:idx_request_resource" json:"resource_id" validate:"required,uuid"`
	ResourceOwner       string        `gorm:"type:uuid;not null;index" json:"resource_owner"`
	RequestedBy         string        `gorm:"type:uuid;not null;index" json:"requested_by"`
	RequestedPermission Permission    `gorm:"not null" json:"requested_permission" validate:"required,oneof=view edit"`
	Message             string        `json:"message,omitempty"`
	Status              RequestStatus `gorm:"not null;default:'pending'" json:"status" validate:"omitempty,request_status"`

	RequesterProfile *Profile `gorm:"foreignKey:RequestedBy;references:ID" json:"requester_profile,omitempty"`
	OwnerProfile     *Profile `gorm:"foreignKey:ResourceOwner;references:ID" json:"owner_profile,omitempty"`

	ResourceTitle string `gorm:"-" json:"resource_title,omitempty"`
}

// Comment is anchored to a resource and optionally to a text selection.
// One level of threading: replies carry ParentID and are never themselves
// parents in the UI contract. Resolution is a top-level concern only.
type Comment struct {
	Base
	ResourceType   ResourceType `gorm:"not null;index:idx_comment_resource" json:"resource_type" validate:"required,resource_type"`
	ResourceID     string       `gorm:"type:uuid;not null;index:idx_comment_resource" json:"resource_id" validate:"required,uuid"`
	UserID         string       `gorm:"type:uuid;not null" json:"user_id"`
	Content        string       `gorm:"type:text;not null" json:"content" validate:"required"`
	SelectionStart *int         `json:"selection_start,omitempty"`
	SelectionEnd   *int         `json:"selection_end,omitempty"`
	ParentID       *string      `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Resolved       bool         `gorm:"not null;default:false" json:"resolved"`

	User    *Profile  `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Replies []Comment `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

// DocumentChange is the append-only activity log. Rows are never mutated or
// deleted by normal flows.
type DocumentChange struct {
	ID           string         `gorm:"type:uuid;primary_key" json:"id"`
	ResourceType ResourceType   `gorm:"not null;index:idx_change_resource" json:"resource_type"`
	ResourceID   string         `gorm:"type:uuid;not null;index:idx_change_resource" json:"resource_id"`
	UserID       string         `gorm:"type:uuid;not null" json:"user_id"`
	ChangeType   ChangeType     `gorm:"not null" json:"change_type"`
	FieldName    string         `json:"field_name,omitempty"`
	OldValue     string         `gorm:"type:text" json:"old_value,omitempty"`
	NewValue     string         `gorm:"type:text" json:"new_value,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`

	User *Profile `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}
