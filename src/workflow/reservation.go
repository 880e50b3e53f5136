package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"accessbus/src/client"
	"accessbus/src/types"
	"accessbus/src/ui"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

const DefaultPollInterval = 30 * time.Second

// Selection is the timetable row the rider chose.
type Selection struct {
	OriginID      string
	DestinationID string
	Timetable     types.Timetable
}

func (s Selection) request(now time.Time) types.CreateReservationRequestBody {
	at := s.Timetable.ArrivalTime
	if at == "" {
		at = now.Format(time.RFC3339)
	}
	return types.CreateReservationRequestBody{
		OriginID:      s.OriginID,
		DestinationID: s.DestinationID,
		VehicleID:     s.Timetable.VehicleID,
		RouteID:       s.Timetable.RouteID,
		Time:          at,
	}
}

type ReservationView struct {
	State           State
	ConfirmLabel    string
	ConfirmDisabled bool
	CancelLabel     string
	Reservation     *types.ReservationView
}

// ReservationFlow drives the confirm screen. After a successful booking the
// reservation is refreshed immediately and then every poll interval until the
// screen is closed or the booking goes away.
type ReservationFlow struct {
	api      ReservationAPI
	deps     Deps
	interval time.Duration
	sched    gocron.Scheduler
	now      func() time.Time

	mu          sync.Mutex
	state       State
	reservation *types.ReservationView
	job         uuid.UUID
}

func NewReservationFlow(api ReservationAPI, deps Deps, interval time.Duration) (*ReservationFlow, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()
	return &ReservationFlow{
		api:      api,
		deps:     deps.withDefaults(),
		interval: interval,
		sched:    sched,
		now:      time.Now,
	}, nil
}

func (f *ReservationFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *ReservationFlow) Reservation() *types.ReservationView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservation
}

func (f *ReservationFlow) View() ReservationView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := ReservationView{
		State:        f.state,
		ConfirmLabel: "Confirm Booking?",
		CancelLabel:  "Cancel Booking",
		Reservation:  f.reservation,
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

// Confirm books sel. It returns ErrAlreadyConfirmed while a booking is held
// or in flight.
func (f *ReservationFlow) Confirm(ctx context.Context, sel Selection) error {
	f.mu.Lock()
	if f.state == Confirmed || f.state == PendingConfirm {
		f.mu.Unlock()
		return ErrAlreadyConfirmed
	}
	f.state = PendingConfirm
	f.mu.Unlock()

	view, err := f.api.CreateReservation(ctx, sel.request(f.now()))
	if err != nil {
		f.mu.Lock()
		f.state = NoReservation
		f.mu.Unlock()
		f.deps.Logger.Printf("Error creating reservation: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return err
	}

	f.mu.Lock()
	f.state = Confirmed
	f.reservation = view
	f.mu.Unlock()

	f.deps.Speaker.Speak(fmt.Sprintf("Booking confirmed. Bus %s arrives in %d minutes.", view.VehicleID, view.ArrivalMin))
	f.deps.Navigator.Navigate(ui.ScreenConfirmed)
	f.Poll(ctx)
	return f.startPolling()
}

// Poll fetches the reservation once. A missing reservation means it was
// cancelled elsewhere or expired.
func (f *ReservationFlow) Poll(ctx context.Context) {
	view, err := f.api.SeeReservation(ctx)
	if client.IsNotFound(err) {
		f.stopPolling()
		f.mu.Lock()
		if f.state == Confirmed {
			f.state = Cancelled
			f.reservation = nil
		}
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.deps.Logger.Printf("Error polling reservation: %s\n", err.Error())
		return
	}
	f.mu.Lock()
	if f.state == Confirmed {
		f.reservation = view
	}
	f.mu.Unlock()
}

func (f *ReservationFlow) startPolling() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Confirmed || f.job != uuid.Nil {
		return nil
	}
	j, err := f.sched.NewJob(
		gocron.DurationJob(f.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), f.interval)
			defer cancel()
			f.Poll(ctx)
		}),
		gocron.WithName("see-reservation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		f.deps.Logger.Printf("Error scheduling reservation poll: %s\n", err.Error())
		return err
	}
	f.job = j.ID()
	return nil
}

func (f *ReservationFlow) stopPolling() {
	f.mu.Lock()
	id := f.job
	f.job = uuid.Nil
	f.mu.Unlock()
	if id == uuid.Nil {
		return
	}
	if err := f.sched.RemoveJob(id); err != nil {
		f.deps.Logger.Printf("Error stopping reservation poll: %s\n", err.Error())
	}
}

// Polling reports whether a poll job is scheduled.
func (f *ReservationFlow) Polling() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job != uuid.Nil
}

// Cancel deletes the booking. Without a confirmed booking it only navigates
// back to the timetables. A reservation the server no longer has counts as
// cancelled.
func (f *ReservationFlow) Cancel(ctx context.Context) error {
	if f.State() != Confirmed {
		f.deps.Navigator.Navigate(ui.ScreenTimetables)
		return nil
	}
	f.stopPolling()
	_, err := f.api.DeleteReservation(ctx)
	if err != nil && !client.IsNotFound(err) {
		f.deps.Logger.Printf("Error deleting reservation: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		if perr := f.startPolling(); perr != nil {
			return perr
		}
		return err
	}
	f.mu.Lock()
	f.state = Cancelled
	f.reservation = nil
	f.mu.Unlock()
	f.deps.Speaker.Speak("Booking cancelled.")
	f.deps.Navigator.Navigate(ui.ScreenTimetables)
	return nil
}

// Close stops polling when the screen is dismissed.
func (f *ReservationFlow) Close() {
	f.stopPolling()
}

// Shutdown stops the flow's scheduler. The flow cannot poll afterwards.
func (f *ReservationFlow) Shutdown() error {
	f.stopPolling()
	return f.sched.Shutdown()
}
