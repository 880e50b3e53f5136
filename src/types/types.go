package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Role string

const (
	ROLE_DISABLED  Role = "Disabled"
	ROLE_VOLUNTEER Role = "Volunteer"
	ROLE_USER      Role = "User"
)

// Codes carried in the "error" field of every 401 response.
const (
	ERR_MISSING_TOKEN       = "missing_token"
	ERR_TOKEN_EXPIRED       = "token_expired"
	ERR_INVALID_TOKEN       = "invalid_token"
	ERR_REVOKED_TOKEN       = "revoked_token"
	ERR_INVALID_CREDENTIALS = "invalid_credentials"
)

// Codes for non-auth failures.
const (
	ERR_VALIDATION = "validation_error"
	ERR_NOT_FOUND  = "not_found"
	ERR_CONFLICT   = "conflict"
	ERR_INTERNAL   = "internal_error"
)

type RampType string

const (
	RAMP_NONE   RampType = "NONE"
	RAMP_MANUAL RampType = "MANUAL"
	RAMP_AUTO   RampType = "AUTO"
)

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type EventType string

const (
	EVENT_RESERVATION_CREATED EventType = "reservation.created"
	EVENT_RESERVATION_DELETED EventType = "reservation.deleted"
	EVENT_RESERVATION_EXPIRED EventType = "reservation.expired"
	EVENT_VOLUNTEER_ATTACHED  EventType = "volunteer.attached"
	EVENT_VOLUNTEER_DETACHED  EventType = "volunteer.detached"
)

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterUserRequestBody struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Role          Role   `json:"role,omitempty" binding:"omitempty,oneof=Disabled Volunteer User"`
	HasDisability bool   `json:"has_disability,omitempty"`
}

type CreateReservationRequestBody struct {
	OriginID      string `json:"origin_id" binding:"required"`
	DestinationID string `json:"destination_id" binding:"required"`
	VehicleID     string `json:"vehicle_id" binding:"required"`
	RouteID       string `json:"route_id,omitempty"`
	Time          string `json:"time" binding:"required,reservationtime"`
}

type VolunteerRequestBody struct {
	ReservationID uint `json:"reservation_id" binding:"required"`
}

type EditProfileRequestBody struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
	// nil leaves the current requirements untouched, an empty list clears them
	AccessibilityRequirements *[]string `json:"accessibility_requirements,omitempty"`
}

type ChangePasswordRequestBody struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type LinkDocumentRequestBody struct {
	DocumentID string `json:"document_id" binding:"required,uuid"`
}

type AutocompleteQuery struct {
	Input string `form:"input" binding:"required"`
	Limit int    `form:"limit,default=5" binding:"min=1,max=50"`
}

type TimetablesQuery struct {
	OriginID      string `form:"origin_id" binding:"required"`
	DestinationID string `form:"destination_id"`
}

type NearbyReservationsQuery struct {
	Latitude  *float64 `form:"latitude" binding:"required,latitude"`
	Longitude *float64 `form:"longitude" binding:"required,longitude"`
	Limit     int      `form:"limit,default=5" binding:"min=1,max=50"`
}

type Stop struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Street string `json:"street"`
}

type Timetable struct {
	RouteID     string   `json:"route_id"`
	RouteName   string   `json:"route_name"`
	VehicleID   string   `json:"vehicle_id"`
	ArrivalMin  int      `json:"arrival_min"`
	ArrivalTime string   `json:"arrival_time"`
	SeatsEmpty  int      `json:"seats_empty"`
	RampType    RampType `json:"ramp_type"`
}

// ReservationView is a reservation with the fields derived from the vehicle feed.
type ReservationView struct {
	ReservationID  uint     `json:"reservation_id"`
	OriginID       string   `json:"origin_id"`
	DestinationID  string   `json:"destination_id"`
	VehicleID      string   `json:"vehicle_id"`
	RouteID        string   `json:"route_id,omitempty"`
	RouteName      string   `json:"route_name,omitempty"`
	Time           string   `json:"time"`
	VolunteerCount uint     `json:"volunteer_count"`
	SeatsEmpty     int      `json:"seats_empty"`
	ArrivalMin     int      `json:"arrival_min"`
	ArrivalTime    string   `json:"arrival_time,omitempty"`
	Street         string   `json:"street,omitempty"`
	RampType       RampType `json:"ramp_type,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`
}

type Event struct {
	Type      EventType `json:"type"`
	Reference uint      `json:"reference"`
	UserID    uint      `json:"user_id"`
	Payload   JSONB     `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

type AuthResponse struct {
	Message      string `json:"message"`
	Success      bool   `json:"success"`
	UserID       uint   `json:"user_id"`
	Role         Role   `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type UserInfo struct {
	ID                        uint     `json:"user_id"`
	Name                      string   `json:"name"`
	Email                     string   `json:"email"`
	Role                      Role     `json:"role"`
	AccessibilityRequirements []string `json:"accessibility_requirements"`
	HasDocument               bool     `json:"has_document"`
}
