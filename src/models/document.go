package models

import (
	"accessbus/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded proof of disability. OwnerID is nil for temporary
// uploads made before the account exists.
type Document struct {
	ID          uuid.UUID `gorm:"primarykey;type:uuid" json:"document_id"`
	OwnerID     *uint     `gorm:"index" json:"-"`
	Key         string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`

	types.Timestamps
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (d *Document) Linked() bool {
	return d.OwnerID != nil
}
