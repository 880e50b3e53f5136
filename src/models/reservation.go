package models

import "time"

// Reservation rows are hard deleted, so OwnerID stays unique per rider.
type Reservation struct {
	ID             uint      `gorm:"primarykey" json:"reservation_id"`
	OwnerID        uint      `gorm:"uniqueIndex" json:"-"`
	OriginID       string    `gorm:"index" json:"origin_id"`
	DestinationID  string    `json:"destination_id"`
	VehicleID      string    `json:"vehicle_id"`
	RouteID        string    `json:"route_id,omitempty"`
	Time           time.Time `gorm:"column:departs_at;index" json:"time"`
	VolunteerCount uint      `gorm:"default:0" json:"volunteer_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Owner      *User                  `gorm:"foreignKey:OwnerID" json:"-"`
	Volunteers []VolunteerReservation `gorm:"foreignKey:ReservationID" json:"-"`
}

type VolunteerReservation struct {
	ID            uint      `gorm:"primarykey" json:"-"`
	ReservationID uint      `gorm:"uniqueIndex:volunteer_reservation" json:"reservation_id"`
	UserID        uint      `gorm:"uniqueIndex:volunteer_reservation" json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
