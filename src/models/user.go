package models

import (
	"accessbus/src/types"
	"time"
)

type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"`
	Role         types.Role `gorm:"type:text" json:"role"`
	LastActive   *time.Time `json:"last_active,omitempty"`

	Requirements []AccessibilityRequirement `gorm:"many2many:user_accessibility;" json:"accessibility_requirements,omitempty"`
	Documents    []Document                 `gorm:"foreignKey:OwnerID" json:"-"`

	types.Timestamps
}

// AccessibilityRequirement is a named need a rider can attach to their profile,
// e.g. "wheelchair" or "guide_dog".
type AccessibilityRequirement struct {
	ID          uint   `gorm:"primarykey" json:"-"`
	Name        string `gorm:"uniqueIndex" json:"name"`
	Description string `json:"description,omitempty"`
}

// Seeded into accessibility_requirements on boot.
var DefaultAccessibilityRequirements = []AccessibilityRequirement{
	{Name: "wheelchair", Description: "Wheelchair user, needs a ramp"},
	{Name: "visual_impairment", Description: "Needs audio announcements"},
	{Name: "hearing_impairment", Description: "Needs visual announcements"},
	{Name: "guide_dog", Description: "Travelling with an assistance animal"},
	{Name: "mobility_aid", Description: "Uses a walker or crutches"},
}
