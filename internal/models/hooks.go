package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/events"
)

func (s *Share) AfterCreate(tx *gorm.DB) error {
	events.Emit("shares.created", s)
	return nil
}

func (c *Comment) AfterCreate(tx *gorm.DB) error {
	events.Emit("comments.created", c)
	return nil
}

func (r *AccessRequest) AfterCreate(tx *gorm.DB) error {
	events.Emit("access_requests.created", r)
	return nil
}

func (d *DocumentChange) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
