package models

import (
	"accessbus/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRevoked TokenStatus = "revoked"
)

// Token records an issued refresh token by its jti.
type Token struct {
	ID        uuid.UUID       `gorm:"primarykey;type:uuid" json:"-"`
	UserID    uint            `gorm:"index;->;<-:create" json:"-"`
	Kind      types.TokenKind `gorm:"type:text;->;<-:create" json:"-"`
	ExpiresAt time.Time       `json:"-"`
	Status    TokenStatus     `gorm:"type:text;default:'active'" json:"-"`

	types.Timestamps
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Token) Usable(now time.Time) bool {
	return t.Status == TokenStatusActive && now.Before(t.ExpiresAt)
}
