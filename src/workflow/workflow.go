// Package workflow holds the screen-independent state of the rider and
// volunteer journeys. Screens render the views these flows expose and call
// back into them.
package workflow

import (
	"context"
	"errors"
	"log"

	"accessbus/src/client"
	"accessbus/src/types"
	"accessbus/src/ui"
)

// Deps are the collaborators shared by every flow. Nil fields fall back to
// no-ops and log.Default().
type Deps struct {
	Navigator ui.Navigator
	Alerter   ui.Alerter
	Speaker   ui.Speaker
	Location  ui.LocationProvider
	Logger    *log.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Navigator == nil {
		d.Navigator = ui.Discard{}
	}
	if d.Alerter == nil {
		d.Alerter = ui.Discard{}
	}
	if d.Speaker == nil {
		d.Speaker = ui.Discard{}
	}
	if d.Location == nil {
		d.Location = ui.Discard{}
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return d
}

type ReservationAPI interface {
	CreateReservation(ctx context.Context, body types.CreateReservationRequestBody) (*types.ReservationView, error)
	DeleteReservation(ctx context.Context) (bool, error)
	SeeReservation(ctx context.Context) (*types.ReservationView, error)
}

type VolunteerAPI interface {
	ShowReservations(ctx context.Context, lat, lon float64, limit int) ([]types.ReservationView, error)
	AddVolunteer(ctx context.Context, reservationID uint) (uint, error)
	RemoveVolunteer(ctx context.Context, reservationID uint) (uint, error)
}

type SearchAPI interface {
	Autocomplete(ctx context.Context, input string, limit int) ([]types.Stop, error)
	Timetables(ctx context.Context, originID, destinationID string) ([]types.Timetable, error)
}

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*types.AuthResponse, error)
	Register(ctx context.Context, body types.RegisterUserRequestBody) (*types.AuthResponse, error)
	Logout(ctx context.Context) error
	LinkDocumentToUser(ctx context.Context, documentID string) error
}

type AccountAPI interface {
	UserInfo(ctx context.Context) (*types.UserInfo, error)
	EditProfile(ctx context.Context, body types.EditProfileRequestBody) (*types.UserInfo, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UploadPDF(ctx context.Context, filename string, content []byte) (string, error)
	ViewPDF(ctx context.Context) ([]byte, error)
}

var _ interface {
	ReservationAPI
	VolunteerAPI
	SearchAPI
	AuthAPI
	AccountAPI
} = (*client.Client)(nil)

const (
	msgNetwork = "Unable to reach the server. Please check your connection and try again."
	msgSession = "Your session has expired. Please log in again."
	msgUnknown = "Something went wrong. Please try again."
)

// AlertMessage is the text shown to the user for err. Validation failures
// carry the server message verbatim.
func AlertMessage(err error) string {
	var verr *client.ValidationError
	var aerr *client.AuthError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &aerr):
		if aerr.Code == types.ERR_INVALID_CREDENTIALS && aerr.Message != "" {
			return aerr.Message
		}
		return msgSession
	case client.IsNetwork(err):
		return msgNetwork
	}
	return msgUnknown
}

// State is the booking state shared by the reservation and volunteer flows.
type State int

const (
	NoReservation State = iota
	PendingConfirm
	Confirmed
	Cancelled
)

func (s State) String() string {
	switch s {
	case PendingConfirm:
		return "PendingConfirm"
	case Confirmed:
		return "Confirmed"
	case Cancelled:
		return "Cancelled"
	}
	return "NoReservation"
}

var ErrAlreadyConfirmed = errors.New("already confirmed")
