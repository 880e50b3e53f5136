package models

import (
	"accessbus/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is the outbox row written for every published domain event.
type Notification struct {
	ID          uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	Type        types.EventType `gorm:"type:text;index" json:"type"`
	Reference   uint            `gorm:"index" json:"reference"`
	UserID      uint            `json:"user_id"`
	Payload     *types.JSONB    `gorm:"type:jsonb" json:"payload,omitempty"`
	Delivered   bool            `json:"delivered"`
	DeliveredTo string          `json:"delivered_to,omitempty"`

	types.Timestamps
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
