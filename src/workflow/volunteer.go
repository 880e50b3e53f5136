package workflow

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"accessbus/src/client"
	"accessbus/src/types"
	"accessbus/src/ui"
)

const DefaultNearbyLimit = 5

type NearbyState int

const (
	NoLocation NearbyState = iota
	Empty
	Results
	// LookupFailed means a location fix was available but the listing failed.
	LookupFailed
)

type NearbyResult struct {
	State        NearbyState
	Reservations []types.ReservationView
}

type VolunteerView struct {
	State           State
	ReservationID   uint
	VolunteerCount  uint
	ConfirmLabel    string
	ConfirmDisabled bool
	CancelLabel     string
}

// VolunteerFlow lists riders near the volunteer and attaches the volunteer
// to one of their reservations.
type VolunteerFlow struct {
	api   VolunteerAPI
	deps  Deps
	limit int

	mu             sync.Mutex
	state          State
	reservationID  uint
	volunteerCount uint
}

func NewVolunteerFlow(api VolunteerAPI, deps Deps, limit int) *VolunteerFlow {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	return &VolunteerFlow{api: api, deps: deps.withDefaults(), limit: limit}
}

// ListNearby returns at most limit reservations ordered by distance.
func (f *VolunteerFlow) ListNearby(ctx context.Context) (NearbyResult, error) {
	lat, lon, ok, err := f.deps.Location.Location(ctx)
	if err != nil {
		f.deps.Logger.Printf("Error reading location: %s\n", err.Error())
		return NearbyResult{State: NoLocation}, err
	}
	if !ok {
		return NearbyResult{State: NoLocation}, nil
	}
	list, err := f.api.ShowReservations(ctx, lat, lon, f.limit)
	if err != nil {
		f.deps.Logger.Printf("Error listing reservations: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return NearbyResult{State: LookupFailed}, err
	}
	if len(list) > f.limit {
		list = list[:f.limit]
	}
	if len(list) == 0 {
		return NearbyResult{State: Empty}, nil
	}
	return NearbyResult{State: Results, Reservations: list}, nil
}

func (f *VolunteerFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *VolunteerFlow) View() VolunteerView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := VolunteerView{
		State:          f.state,
		ReservationID:  f.reservationID,
		VolunteerCount: f.volunteerCount,
		ConfirmLabel:   "Confirm Volunteering?",
		CancelLabel:    "Cancel Volunteering",
	}
	switch f.state {
	case Confirmed:
		v.ConfirmLabel = "Confirmed!"
		v.ConfirmDisabled = true
	case PendingConfirm:
		v.ConfirmDisabled = true
	}
	return v
}

// Attach volunteers for reservationID. Being attached already counts as
// success.
func (f *VolunteerFlow) Attach(ctx context.Context, reservationID uint) error {
	f.mu.Lock()
	if f.state == Confirmed || f.state == PendingConfirm {
		f.mu.Unlock()
		return ErrAlreadyConfirmed
	}
	f.state = PendingConfirm
	f.mu.Unlock()

	count, err := f.api.AddVolunteer(ctx, reservationID)
	if err != nil && !isConflict(err) {
		f.mu.Lock()
		f.state = NoReservation
		f.mu.Unlock()
		f.deps.Logger.Printf("Error attaching volunteer: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return err
	}

	f.mu.Lock()
	f.state = Confirmed
	f.reservationID = reservationID
	if err == nil {
		f.volunteerCount = count
	}
	f.mu.Unlock()
	f.deps.Speaker.Speak("You are now volunteering for this trip.")
	f.deps.Navigator.Navigate(ui.ScreenVolunteerConfirmed)
	return nil
}

// Detach leaves reservationID. The server decides whether the volunteer was
// attached; not being attached counts as detached.
func (f *VolunteerFlow) Detach(ctx context.Context, reservationID uint) error {
	count, err := f.api.RemoveVolunteer(ctx, reservationID)
	if err != nil && !client.IsNotFound(err) {
		f.deps.Logger.Printf("Error detaching volunteer: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return err
	}
	f.mu.Lock()
	if f.reservationID == reservationID || f.state != Confirmed {
		f.state = Cancelled
		f.reservationID = reservationID
		f.volunteerCount = count
	}
	f.mu.Unlock()
	f.deps.Speaker.Speak("Volunteering cancelled.")
	f.deps.Navigator.Navigate(ui.ScreenVolunteerList)
	return nil
}

func isConflict(err error) bool {
	var verr *client.ValidationError
	return errors.As(err, &verr) && verr.Status == http.StatusConflict
}

// RampLabel describes a vehicle's ramp for screen readers.
func RampLabel(r types.RampType) string {
	switch r {
	case types.RAMP_MANUAL:
		return "Manual ramp"
	case types.RAMP_AUTO:
		return "Automatic ramp"
	}
	return "No ramp"
}
