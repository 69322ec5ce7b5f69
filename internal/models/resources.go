package models

import (
	"context"

	"gorm.io/gorm"
)

// ResourceDescriptor maps a resource type onto the table that owns it.
// Adding a resource kind is a one-line registry edit; nothing else in the
// authorization or lookup paths branches on the type.
type ResourceDescriptor struct {
	Type        ResourceType
	Table       string
	OwnerColumn string
	TitleColumn string
}

var resourceRegistry = map[ResourceType]ResourceDescriptor{
	ResourceTypeContract: {
		Type:        ResourceTypeContract,
		Table:       "contracts",
		OwnerColumn: "user_id",
		TitleColumn: "title",
	},
	ResourceTypeTemplate: {
		Type:        ResourceTypeTemplate,
		Table:       "templates",
		OwnerColumn: "user_id",
		TitleColumn: "title",
	},
	ResourceTypeFolder: {
		Type:        ResourceTypeFolder,
		Table:       "folders",
		OwnerColumn: "user_id",
		TitleColumn: "name",
	},
	ResourceTypeTemplateFolder: {
		Type:        ResourceTypeTemplateFolder,
		Table:       "template_folders",
		OwnerColumn: "user_id",
		TitleColumn: "name",
	},
}

// DescriptorFor returns the registry entry for a resource type.
func DescriptorFor(rt ResourceType) (ResourceDescriptor, bool) {
	d, ok := resourceRegistry[rt]
	return d, ok
}

// IsValidResourceType checks if a given resource type is registered
func IsValidResourceType(rt string) bool {
	_, ok := resourceRegistry[ResourceType(rt)]
	return ok
}

// FetchOwner resolves the owning user id of a resource row. A missing row
// returns gorm.ErrRecordNotFound.
func (d ResourceDescriptor) FetchOwner(ctx context.Context, db *gorm.DB, resourceID string) (string, error) {
	var owner string
	err := db.WithContext(ctx).
		Table(d.Table).
		Select(d.OwnerColumn).
		Where("id = ?", resourceID).
		Take(&owner).Error
	if err != nil {
		return "", err
	}
	return owner, nil
}

// FetchTitle resolves the display title of a resource row.
func (d ResourceDescriptor) FetchTitle(ctx context.Context, db *gorm.DB, resourceID string) (string, error) {
	var title string
	err := db.WithContext(ctx).
		Table(d.Table).
		Select(d.TitleColumn).
		Where("id = ?", resourceID).
		Take(&title).Error
	if err != nil {
		return "", err
	}
	return title, nil
}
