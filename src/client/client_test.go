package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"accessbus/src/types"
	"accessbus/src/ui"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type recordingNavigator struct {
	mu      sync.Mutex
	screens []ui.Screen
}

func (n *recordingNavigator) Navigate(s ui.Screen) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.screens = append(n.screens, s)
}

func (n *recordingNavigator) Screens() []ui.Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ui.Screen(nil), n.screens...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func unauthorized(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": code, "message": code, "success": false})
}

// fakeAPI accepts the access token "fresh" and hands it out on /refresh.
type fakeAPI struct {
	refreshes    atomic.Int32
	calls        atomic.Int32
	refreshDelay time.Duration
	refreshCode  string
	alwaysReject bool
	rejectCode   string
	uploaded     atomic.Value
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		time.Sleep(f.refreshDelay)
		if f.refreshCode != "" {
			unauthorized(w, f.refreshCode)
			return
		}
		if r.Header.Get("Authorization") != "Bearer refresh-token" {
			unauthorized(w, types.ERR_INVALID_TOKEN)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "fresh", "success": true})
	})
	mux.HandleFunc("/see_reservation", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.alwaysReject || r.Header.Get("Authorization") != "Bearer fresh" {
			code := f.rejectCode
			if code == "" {
				code = types.ERR_TOKEN_EXPIRED
			}
			unauthorized(w, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"reservation_id": 9, "vehicle_id": "U1-v0"}})
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		unauthorized(w, types.ERR_INVALID_CREDENTIALS)
	})
	mux.HandleFunc("/create_reservation", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": types.ERR_VALIDATION, "message": "Unknown origin stop"})
	})
	mux.HandleFunc("/upload_pdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			unauthorized(w, types.ERR_TOKEN_EXPIRED)
			return
		}
		file, fh, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": types.ERR_VALIDATION, "message": err.Error()})
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		f.uploaded.Store(fh.Filename + ":" + string(b))
		writeJSON(w, http.StatusCreated, map[string]any{"document_id": "doc-42", "linked": true, "success": true})
	})
	mux.HandleFunc("/user-info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": types.ERR_INTERNAL})
	})
	return mux
}

type ClientSuite struct {
	suite.Suite
	API    *fakeAPI
	Server *httptest.Server
	Nav    *recordingNavigator
	Store  *MemoryStore
	Client *Client
}

func (s *ClientSuite) SetupTest() {
	s.API = &fakeAPI{}
	s.Server = httptest.NewServer(s.API.handler())
	s.Nav = &recordingNavigator{}
	s.Store = &MemoryStore{}
	s.Client = New(s.Server.URL, WithNavigator(s.Nav), WithTokenStore(s.Store))
	s.Client.Session().Set(Tokens{AccessToken: "stale", RefreshToken: "refresh-token", UserID: 1, Role: types.ROLE_DISABLED})
}

func (s *ClientSuite) TearDownTest() {
	s.Server.Close()
}

func (s *ClientSuite) TestRefreshThenReplayOnce() {
	view, err := s.Client.SeeReservation(context.Background())
	s.Require().NoError(err)
	assert.Equal(s.T(), uint(9), view.ReservationID)
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.Equal(s.T(), int32(2), s.API.calls.Load())
	assert.Equal(s.T(), "fresh", s.Client.Session().Access())
	assert.Equal(s.T(), "refresh-token", s.Client.Session().Refresh())
	assert.Equal(s.T(), Idle, s.Client.State())

	saved, err := s.Store.Load()
	s.Require().NoError(err)
	s.Require().NotNil(saved)
	assert.Equal(s.T(), "fresh", saved.AccessToken)
}

func (s *ClientSuite) TestReplayIsNeverRetriedAgain() {
	s.API.alwaysReject = true
	_, err := s.Client.SeeReservation(context.Background())
	assert.Equal(s.T(), types.ERR_TOKEN_EXPIRED, AuthCode(err))
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.Equal(s.T(), int32(2), s.API.calls.Load())
}

func (s *ClientSuite) TestRetryableCodes() {
	for _, code := range []string{types.ERR_MISSING_TOKEN, types.ERR_INVALID_TOKEN} {
		s.API.rejectCode = code
		s.Client.Session().UpdateAccess("stale")
		_, err := s.Client.SeeReservation(context.Background())
		assert.NoError(s.T(), err, code)
	}
	assert.Equal(s.T(), int32(2), s.API.refreshes.Load())
}

func (s *ClientSuite) TestInvalidCredentialsNotRetried() {
	_, err := s.Client.Login(context.Background(), "rider@example.com", "wrong")
	assert.Equal(s.T(), types.ERR_INVALID_CREDENTIALS, AuthCode(err))
	assert.Equal(s.T(), int32(0), s.API.refreshes.Load())
	assert.Equal(s.T(), int32(1), s.API.calls.Load())

	s.API.alwaysReject = true
	s.API.rejectCode = types.ERR_INVALID_CREDENTIALS
	_, err = s.Client.SeeReservation(context.Background())
	assert.Equal(s.T(), types.ERR_INVALID_CREDENTIALS, AuthCode(err))
	assert.Equal(s.T(), int32(0), s.API.refreshes.Load())
}

func (s *ClientSuite) TestAuthPathsNeverRefresh() {
	for _, path := range []string{"/login", "/register", "/refresh"} {
		_, err := s.Client.Do(context.Background(), &Request{Method: http.MethodPost, Path: path})
		assert.Error(s.T(), err, path)
	}
	// only the explicit /refresh call above reached the refresh handler
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.Empty(s.T(), s.Nav.Screens())
}

func (s *ClientSuite) TestRefreshFailureLogsOut() {
	s.API.refreshCode = types.ERR_REVOKED_TOKEN
	s.Require().NoError(s.Store.Save(s.Client.Session().Tokens()))

	_, err := s.Client.SeeReservation(context.Background())
	assert.Equal(s.T(), types.ERR_REVOKED_TOKEN, AuthCode(err))
	assert.Equal(s.T(), []ui.Screen{ui.ScreenLogin}, s.Nav.Screens())
	assert.False(s.T(), s.Client.Session().Authenticated())
	assert.Equal(s.T(), Failed, s.Client.State())
	assert.Equal(s.T(), int32(1), s.API.calls.Load())

	saved, err := s.Store.Load()
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), saved)
}

func (s *ClientSuite) TestConcurrentFailuresShareOneRefresh() {
	s.API.refreshDelay = 50 * time.Millisecond
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Client.SeeReservation(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(s.T(), err)
	}
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.Equal(s.T(), "fresh", s.Client.Session().Access())
}

func (s *ClientSuite) TestCancelledCallerDoesNotEndSharedRefresh() {
	s.API.refreshDelay = 150 * time.Millisecond
	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = s.Client.SeeReservation(ctxA)
	}()
	go func() {
		defer wg.Done()
		_, errB = s.Client.SeeReservation(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	cancelA()
	wg.Wait()

	assert.ErrorIs(s.T(), errA, context.Canceled)
	assert.NoError(s.T(), errB)
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.True(s.T(), s.Client.Session().Authenticated())
	assert.Equal(s.T(), "fresh", s.Client.Session().Access())
	assert.Empty(s.T(), s.Nav.Screens())
	assert.Equal(s.T(), Idle, s.Client.State())

	saved, err := s.Store.Load()
	s.Require().NoError(err)
	s.Require().NotNil(saved)
	assert.Equal(s.T(), "fresh", saved.AccessToken)
}

func (s *ClientSuite) TestCancelledRefreshKeepsSession() {
	s.API.refreshDelay = 150 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Client.SeeReservation(ctx)
	assert.ErrorIs(s.T(), err, context.DeadlineExceeded)
	assert.Equal(s.T(), "refresh-token", s.Client.Session().Refresh())
	assert.Empty(s.T(), s.Nav.Screens())
	assert.Eventually(s.T(), func() bool { return s.Client.Session().Access() == "fresh" }, time.Second, 10*time.Millisecond)
}

func (s *ClientSuite) TestUploadPDFReplaysMultipartAfterRefresh() {
	id, err := s.Client.UploadPDF(context.Background(), "badge.pdf", []byte("%PDF-1.4 badge"))
	s.Require().NoError(err)
	assert.Equal(s.T(), "doc-42", id)
	assert.Equal(s.T(), int32(1), s.API.refreshes.Load())
	assert.Equal(s.T(), "badge.pdf:%PDF-1.4 badge", s.API.uploaded.Load())
}

func (s *ClientSuite) TestErrorClassification() {
	_, err := s.Client.CreateReservation(context.Background(), types.CreateReservationRequestBody{})
	assert.True(s.T(), IsValidation(err))
	assert.Equal(s.T(), "Unknown origin stop", err.Error())

	_, err = s.Client.UserInfo(context.Background())
	var unknown *UnknownError
	assert.ErrorAs(s.T(), err, &unknown)
	assert.Equal(s.T(), http.StatusInternalServerError, unknown.Status)

	s.Server.Close()
	_, err = s.Client.Autocomplete(context.Background(), "Drummer", 5)
	assert.True(s.T(), IsNetwork(err))
	assert.False(s.T(), IsAuth(err))
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func TestSessionReadsClaims(t *testing.T) {
	claims := &types.Claims{
		Role: types.ROLE_VOLUNTEER,
		Kind: types.TOKEN_ACCESS,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any"))
	require.NoError(t, err)

	s := NewSession()
	assert.False(t, s.Authenticated())
	s.Set(Tokens{AccessToken: token, RefreshToken: "r"})
	assert.Equal(t, types.ROLE_VOLUNTEER, s.Role())
	assert.Equal(t, uint(42), s.UserID())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt(), time.Minute)
	assert.True(t, s.Authenticated())

	s.Clear()
	assert.Empty(t, s.Access())
	assert.Empty(t, s.Role())
}

func TestFileStore(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "nested", "session.json")}

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, store.Save(Tokens{AccessToken: "a", RefreshToken: "r", UserID: 3, Role: types.ROLE_USER}))
	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)
	assert.Equal(t, uint(3), loaded.UserID)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
