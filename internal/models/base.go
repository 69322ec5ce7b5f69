package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// ResourceType identifies which table owns a collaboration target.
type ResourceType string

const (
	ResourceTypeContract       ResourceType = "contract"
	ResourceTypeTemplate       ResourceType = "template"
	ResourceTypeFolder         ResourceType = "folder"
	ResourceTypeTemplateFolder ResourceType = "template_folder"
)

// Permission is a share's access level. Ordering: admin > edit > view.
type Permission string

const (
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionAdmin Permission = "admin"
)

var permissionRank = map[Permission]int{
	PermissionView:  1,
	PermissionEdit:  2,
	PermissionAdmin: 3,
}

// AtLeast reports whether p grants everything min grants.
func (p Permission) AtLeast(min Permission) bool {
	return permissionRank[p] >= permissionRank[min]
}

// IsValidPermission checks if a given permission level is known
func IsValidPermission(p string) bool {
	_, ok := permissionRank[Permission(p)]
	return ok
}

// RequestStatus is an access request's lifecycle state.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

// ChangeType classifies a document change record.
type ChangeType string

const (
	ChangeTypeCreate  ChangeType = "create"
	ChangeTypeUpdate  ChangeType = "update"
	ChangeTypeDelete  ChangeType = "delete"
	ChangeTypeComment ChangeType = "comment"
)
