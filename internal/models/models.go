package models

// Profile mirrors the identity provider's user record with the display
// metadata the collaboration layer needs.
type Profile struct {
	Base
	Email       string `gorm:"not null;uniqueIndex" json:"email" validate:"required,email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type Contract struct {
	Base
	UserID  string   `gorm:"type:uuid;not null;index" json:"userId" validate:"required,uuid"`
	User    *Profile `json:"user,omitempty"`
	Title   string   `gorm:"not null" json:"title" validate:"required"`
	Content string   `gorm:"type:text" json:"content,omitempty"`
}

type Template struct {
	Base
	UserID  string   `gorm:"type:uuid;not null;index" json:"userId" validate:"required,uuid"`
	User    *Profile `json:"user,omitempty"`
	Title   string   `gorm:"not null" json:"title" validate:"required"`
	Content string   `gorm:"type:text" json:"content,omitempty"`
}

type Folder struct {
	Base
	UserID string   `gorm:"type:uuid;not null;index" json:"userId" validate:"required,uuid"`
	User   *Profile `json:"user,omitempty"`
	Name   string   `gorm:"not null" json:"name" validate:"required"`
}

type TemplateFolder struct {
	Base
	UserID string   `gorm:"type:uuid;not null;index" json:"userId" validate:"required,uuid"`
	User   *Profile `json:"user,omitempty"`
	Name   string   `gorm:"not null" json:"name" validate:"required"`
}
