package workflow

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"accessbus/src/client"
	"accessbus/src/types"
	"accessbus/src/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	screens []ui.Screen
	alerts  []string
	spoken  []string
}

func (r *recorder) Navigate(s ui.Screen) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens = append(r.screens, s)
}

func (r *recorder) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg)
}

func (r *recorder) Speak(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, text)
}

func (r *recorder) Screens() []ui.Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ui.Screen(nil), r.screens...)
}

func (r *recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

type fixedLocation struct {
	lat, lon float64
	ok       bool
}

func (l fixedLocation) Location(context.Context) (float64, float64, bool, error) {
	return l.lat, l.lon, l.ok, nil
}

var errNotFound = &client.ValidationError{Status: http.StatusNotFound, Message: "No reservation found"}

type fakeAPI struct {
	createErr  error
	deleteErr  error
	deletes    atomic.Int32
	sees       atomic.Int32
	seeErr     atomic.Value
	nearby     []types.ReservationView
	nearbyErr  error
	attachErr  error
	detachErr  error
	completes  atomic.Int32
	loginRole  types.Role
	loginErr   error
	logoutErr  error
	linked     []string
	uploaded   []byte
	lastCreate types.CreateReservationRequestBody
}

func (f *fakeAPI) CreateReservation(ctx context.Context, body types.CreateReservationRequestBody) (*types.ReservationView, error) {
	f.lastCreate = body
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &types.ReservationView{ReservationID: 1, VehicleID: body.VehicleID, ArrivalMin: 4}, nil
}

func (f *fakeAPI) DeleteReservation(ctx context.Context) (bool, error) {
	f.deletes.Add(1)
	return f.deleteErr == nil, f.deleteErr
}

func (f *fakeAPI) SeeReservation(ctx context.Context) (*types.ReservationView, error) {
	n := f.sees.Add(1)
	if v := f.seeErr.Load(); v != nil {
		return nil, v.(error)
	}
	return &types.ReservationView{ReservationID: 1, ArrivalMin: int(10 - n)}, nil
}

func (f *fakeAPI) ShowReservations(ctx context.Context, lat, lon float64, limit int) ([]types.ReservationView, error) {
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.nearby, nil
}

func (f *fakeAPI) AddVolunteer(ctx context.Context, id uint) (uint, error) {
	return 1, f.attachErr
}

func (f *fakeAPI) RemoveVolunteer(ctx context.Context, id uint) (uint, error) {
	return 0, f.detachErr
}

func (f *fakeAPI) Autocomplete(ctx context.Context, input string, limit int) ([]types.Stop, error) {
	f.completes.Add(1)
	if input == "fail" {
		return nil, &client.NetworkError{Op: "GET /autocomplete", Err: errors.New("offline")}
	}
	return []types.Stop{{ID: "0500CCITY423", Name: "Drummer Street"}}, nil
}

func (f *fakeAPI) Timetables(ctx context.Context, originID, destinationID string) ([]types.Timetable, error) {
	return nil, &client.NetworkError{Op: "GET /timetables", Err: errors.New("offline")}
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*types.AuthResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &types.AuthResponse{Success: true, Role: f.loginRole}, nil
}

func (f *fakeAPI) Register(ctx context.Context, body types.RegisterUserRequestBody) (*types.AuthResponse, error) {
	return &types.AuthResponse{Success: true}, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	return f.logoutErr
}

func (f *fakeAPI) LinkDocumentToUser(ctx context.Context, documentID string) error {
	f.linked = append(f.linked, documentID)
	return nil
}

func (f *fakeAPI) UserInfo(ctx context.Context) (*types.UserInfo, error) {
	return &types.UserInfo{Name: "Rider"}, nil
}

func (f *fakeAPI) EditProfile(ctx context.Context, body types.EditProfileRequestBody) (*types.UserInfo, error) {
	return &types.UserInfo{Name: *body.Name}, nil
}

func (f *fakeAPI) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return &client.ValidationError{Status: http.StatusBadRequest, Message: "Old password is incorrect"}
}

func (f *fakeAPI) UploadPDF(ctx context.Context, filename string, content []byte) (string, error) {
	f.uploaded = content
	return "doc-1", nil
}

func (f *fakeAPI) ViewPDF(ctx context.Context) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func newReservationFlow(t *testing.T, api *fakeAPI, rec *recorder, interval time.Duration) *ReservationFlow {
	f, err := NewReservationFlow(api, Deps{Navigator: rec, Alerter: rec, Speaker: rec}, interval)
	require.NoError(t, err)
	t.Cleanup(func() { f.Shutdown() })
	return f
}

var selection = Selection{
	OriginID:      "0500CCITY423",
	DestinationID: "0500CCITY054",
	Timetable:     types.Timetable{RouteID: "U1", VehicleID: "U1-v0", ArrivalTime: "10:15"},
}

func TestConfirmAndCancel(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	f := newReservationFlow(t, api, rec, time.Hour)

	v := f.View()
	assert.Equal(t, "Confirm Booking?", v.ConfirmLabel)
	assert.False(t, v.ConfirmDisabled)

	require.NoError(t, f.Confirm(context.Background(), selection))
	assert.Equal(t, "U1-v0", api.lastCreate.VehicleID)
	assert.Equal(t, "10:15", api.lastCreate.Time)
	assert.Equal(t, Confirmed, f.State())
	assert.Equal(t, int32(1), api.sees.Load())
	assert.True(t, f.Polling())
	v = f.View()
	assert.Equal(t, "Confirmed!", v.ConfirmLabel)
	assert.True(t, v.ConfirmDisabled)
	assert.Equal(t, 9, v.Reservation.ArrivalMin)

	assert.ErrorIs(t, f.Confirm(context.Background(), selection), ErrAlreadyConfirmed)

	require.NoError(t, f.Cancel(context.Background()))
	assert.Equal(t, Cancelled, f.State())
	assert.False(t, f.Polling())
	assert.Nil(t, f.Reservation())
	assert.Equal(t, []ui.Screen{ui.ScreenConfirmed, ui.ScreenTimetables}, rec.Screens())

	require.NoError(t, f.Confirm(context.Background(), selection))
	assert.Equal(t, Confirmed, f.State())
}

func TestCancelIsIdempotent(t *testing.T) {
	api := &fakeAPI{deleteErr: errNotFound}
	rec := &recorder{}
	f := newReservationFlow(t, api, rec, time.Hour)

	require.NoError(t, f.Cancel(context.Background()))
	assert.Equal(t, int32(0), api.deletes.Load())
	assert.Equal(t, []ui.Screen{ui.ScreenTimetables}, rec.Screens())

	require.NoError(t, f.Confirm(context.Background(), selection))
	require.NoError(t, f.Cancel(context.Background()))
	assert.Equal(t, Cancelled, f.State())
	assert.Empty(t, rec.Alerts())
}

func TestCancelFailureKeepsBooking(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	f := newReservationFlow(t, api, rec, time.Hour)
	require.NoError(t, f.Confirm(context.Background(), selection))

	api.deleteErr = &client.NetworkError{Op: "POST /delete_reservation", Err: errors.New("offline")}
	assert.Error(t, f.Cancel(context.Background()))
	assert.Equal(t, Confirmed, f.State())
	assert.True(t, f.Polling())
	assert.Equal(t, []string{msgNetwork}, rec.Alerts())
}

func TestConfirmFailure(t *testing.T) {
	api := &fakeAPI{createErr: &client.ValidationError{Status: http.StatusBadRequest, Message: "Unknown origin stop"}}
	rec := &recorder{}
	f := newReservationFlow(t, api, rec, time.Hour)

	assert.Error(t, f.Confirm(context.Background(), selection))
	assert.Equal(t, NoReservation, f.State())
	assert.False(t, f.Polling())
	assert.Equal(t, []string{"Unknown origin stop"}, rec.Alerts())
	assert.Empty(t, rec.Screens())
	assert.Equal(t, int32(0), api.sees.Load())
}

func TestPollingRefreshesReservation(t *testing.T) {
	api := &fakeAPI{}
	f := newReservationFlow(t, api, &recorder{}, 20*time.Millisecond)
	require.NoError(t, f.Confirm(context.Background(), selection))

	assert.Eventually(t, func() bool { return api.sees.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	f.Close()
	assert.False(t, f.Polling())
	seen := api.sees.Load()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, api.sees.Load(), seen+1)
}

func TestPollNotFoundCancels(t *testing.T) {
	api := &fakeAPI{}
	f := newReservationFlow(t, api, &recorder{}, 20*time.Millisecond)
	require.NoError(t, f.Confirm(context.Background(), selection))

	api.seeErr.Store(error(errNotFound))
	assert.Eventually(t, func() bool { return f.State() == Cancelled }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !f.Polling() }, time.Second, 10*time.Millisecond)
	assert.Nil(t, f.Reservation())
}

func TestListNearby(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}

	f := NewVolunteerFlow(api, Deps{Location: fixedLocation{}}, 5)
	res, err := f.ListNearby(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoLocation, res.State)

	f = NewVolunteerFlow(api, Deps{Location: fixedLocation{52.2, 0.12, true}, Alerter: rec}, 5)
	res, err = f.ListNearby(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Empty, res.State)

	for i := 0; i < 7; i++ {
		api.nearby = append(api.nearby, types.ReservationView{ReservationID: uint(i + 1)})
	}
	res, err = f.ListNearby(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Results, res.State)
	assert.Len(t, res.Reservations, 5)
	assert.Equal(t, uint(1), res.Reservations[0].ReservationID)
}

func TestListNearbyFailureIsNotNoLocation(t *testing.T) {
	api := &fakeAPI{nearbyErr: &client.NetworkError{Op: "GET /show_reservations", Err: errors.New("offline")}}
	rec := &recorder{}
	f := NewVolunteerFlow(api, Deps{Location: fixedLocation{52.2, 0.12, true}, Alerter: rec}, 5)

	res, err := f.ListNearby(context.Background())
	assert.True(t, client.IsNetwork(err))
	assert.Equal(t, LookupFailed, res.State)
	assert.NotEqual(t, NoLocation, res.State)
	assert.Empty(t, res.Reservations)
	assert.Equal(t, []string{msgNetwork}, rec.Alerts())
}

func TestAttachDetach(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	f := NewVolunteerFlow(api, Deps{Navigator: rec, Alerter: rec}, 5)

	v := f.View()
	assert.Equal(t, "Confirm Volunteering?", v.ConfirmLabel)
	assert.Equal(t, "Cancel Volunteering", v.CancelLabel)

	require.NoError(t, f.Attach(context.Background(), 4))
	v = f.View()
	assert.Equal(t, Confirmed, v.State)
	assert.Equal(t, "Confirmed!", v.ConfirmLabel)
	assert.True(t, v.ConfirmDisabled)
	assert.Equal(t, uint(4), v.ReservationID)
	assert.Equal(t, uint(1), v.VolunteerCount)
	assert.ErrorIs(t, f.Attach(context.Background(), 4), ErrAlreadyConfirmed)

	require.NoError(t, f.Detach(context.Background(), 4))
	assert.Equal(t, Cancelled, f.State())
	assert.Equal(t, "Confirm Volunteering?", f.View().ConfirmLabel)

	api.detachErr = errNotFound
	require.NoError(t, f.Detach(context.Background(), 4))
	assert.Equal(t, Cancelled, f.State())
	assert.Equal(t, []ui.Screen{ui.ScreenVolunteerConfirmed, ui.ScreenVolunteerList, ui.ScreenVolunteerList}, rec.Screens())
	assert.Empty(t, rec.Alerts())

	api.detachErr = &client.NetworkError{Op: "POST /remove_volunteer", Err: errors.New("offline")}
	assert.Error(t, f.Detach(context.Background(), 4))
	assert.Equal(t, []string{msgNetwork}, rec.Alerts())
}

func TestAttachConflictCountsAsAttached(t *testing.T) {
	api := &fakeAPI{attachErr: &client.ValidationError{Status: http.StatusConflict, Message: "Already volunteering for this reservation"}}
	rec := &recorder{}
	f := NewVolunteerFlow(api, Deps{Alerter: rec}, 5)

	require.NoError(t, f.Attach(context.Background(), 4))
	assert.Equal(t, Confirmed, f.State())
	assert.Empty(t, rec.Alerts())

	api.attachErr = &client.ValidationError{Status: http.StatusBadRequest, Message: "You cannot volunteer for your own reservation"}
	g := NewVolunteerFlow(api, Deps{Alerter: rec}, 5)
	assert.Error(t, g.Attach(context.Background(), 4))
	assert.Equal(t, NoReservation, g.State())
	assert.Equal(t, []string{"You cannot volunteer for your own reservation"}, rec.Alerts())
}

func TestRampLabel(t *testing.T) {
	assert.Equal(t, "Manual ramp", RampLabel(types.RAMP_MANUAL))
	assert.Equal(t, "Automatic ramp", RampLabel(types.RAMP_AUTO))
	assert.Equal(t, "No ramp", RampLabel(types.RAMP_NONE))
	assert.Equal(t, "No ramp", RampLabel(""))
}

func TestAutocomplete(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	f := NewSearchFlow(api, Deps{Alerter: rec}, 5)

	assert.Nil(t, f.Autocomplete(context.Background(), "  Dr "))
	assert.Equal(t, int32(0), api.completes.Load())

	stops := f.Autocomplete(context.Background(), "Dru")
	assert.Len(t, stops, 1)

	assert.Nil(t, f.Autocomplete(context.Background(), "fail"))
	assert.Equal(t, int32(2), api.completes.Load())
	assert.Empty(t, rec.Alerts())
}

func TestTimetablesAlertsOnNetworkError(t *testing.T) {
	rec := &recorder{}
	f := NewSearchFlow(&fakeAPI{}, Deps{Alerter: rec}, 5)
	_, err := f.Timetables(context.Background(), "a", "b")
	assert.True(t, client.IsNetwork(err))
	assert.Equal(t, []string{msgNetwork}, rec.Alerts())
}

func TestWaitMinutes(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 20, 0, time.UTC)
	assert.Equal(t, 15, WaitMinutes("09:45", now))
	assert.Equal(t, 0, WaitMinutes("09:00", now))
	assert.Equal(t, 0, WaitMinutes("soon", now))

	late := time.Date(2025, 5, 1, 23, 50, 0, 0, time.UTC)
	assert.Equal(t, 20, WaitMinutes("00:10", late))
}

func TestLandingScreens(t *testing.T) {
	cases := map[types.Role]ui.Screen{
		types.ROLE_DISABLED:  ui.ScreenSearch,
		types.ROLE_VOLUNTEER: ui.ScreenTimetables,
		types.ROLE_USER:      ui.ScreenHome,
	}
	for role, screen := range cases {
		rec := &recorder{}
		f := NewAuthFlow(&fakeAPI{loginRole: role}, Deps{Navigator: rec})
		got, err := f.Login(context.Background(), "rider@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, role, got)
		assert.Equal(t, []ui.Screen{screen}, rec.Screens())
	}
}

func TestLoginFailure(t *testing.T) {
	rec := &recorder{}
	api := &fakeAPI{loginErr: &client.AuthError{Code: types.ERR_INVALID_CREDENTIALS, Message: "Invalid email or password"}}
	f := NewAuthFlow(api, Deps{Navigator: rec, Alerter: rec})
	_, err := f.Login(context.Background(), "rider@example.com", "wrong")
	assert.Error(t, err)
	assert.Empty(t, rec.Screens())
	assert.Equal(t, []string{"Invalid email or password"}, rec.Alerts())
}

func TestSignupThenLoginLinksDocument(t *testing.T) {
	rec := &recorder{}
	api := &fakeAPI{loginRole: types.ROLE_DISABLED}
	f := NewAuthFlow(api, Deps{Navigator: rec, Alerter: rec})

	require.NoError(t, f.Signup(context.Background(), SignupForm{Name: "Rider", Email: "rider@example.com", Password: "pw", HasDisability: true, DocumentID: "doc-9"}))
	assert.Equal(t, []ui.Screen{ui.ScreenLogin}, rec.Screens())
	assert.Empty(t, api.linked)

	_, err := f.Login(context.Background(), "rider@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-9"}, api.linked)

	_, err = f.Login(context.Background(), "rider@example.com", "pw")
	require.NoError(t, err)
	assert.Len(t, api.linked, 1)
}

func TestLogoutAlwaysGoesHome(t *testing.T) {
	rec := &recorder{}
	f := NewAuthFlow(&fakeAPI{logoutErr: errors.New("offline")}, Deps{Navigator: rec})
	f.Logout(context.Background())
	assert.Equal(t, []ui.Screen{ui.ScreenHome}, rec.Screens())
}

func TestAccountFlow(t *testing.T) {
	rec := &recorder{}
	api := &fakeAPI{}
	f := NewAccountFlow(api, Deps{Alerter: rec})

	file := filepath.Join(t.TempDir(), "badge.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.4 badge"), 0o600))
	id, err := f.UploadDocument(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	assert.Empty(t, api.linked)
	assert.Equal(t, []byte("%PDF-1.4 badge"), api.uploaded)

	var buf bytes.Buffer
	n, err := f.ViewDocument(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	name := "New Name"
	info, err := f.EditProfile(context.Background(), types.EditProfileRequestBody{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", info.Name)

	assert.Error(t, f.ChangePassword(context.Background(), "old", "new"))
	assert.Contains(t, rec.Alerts(), "Old password is incorrect")
}

func TestAlertMessage(t *testing.T) {
	assert.Equal(t, msgNetwork, AlertMessage(&client.NetworkError{Op: "GET /", Err: errors.New("x")}))
	assert.Equal(t, msgSession, AlertMessage(&client.AuthError{Code: types.ERR_REVOKED_TOKEN}))
	assert.Equal(t, msgUnknown, AlertMessage(&client.UnknownError{Status: 502}))
	assert.Equal(t, "Bad input", AlertMessage(&client.ValidationError{Status: 400, Message: "Bad input"}))
}
