package workflow

import (
	"context"
	"sync"

	"accessbus/src/types"
	"accessbus/src/ui"
)

type SignupForm struct {
	Name          string
	Email         string
	Password      string
	HasDisability bool
	// DocumentID is a temporary upload linked to the account on first login.
	DocumentID string
}

type AuthFlow struct {
	api  AuthAPI
	deps Deps

	mu              sync.Mutex
	pendingDocument string
}

func NewAuthFlow(api AuthAPI, deps Deps) *AuthFlow {
	return &AuthFlow{api: api, deps: deps.withDefaults()}
}

// LandingScreen is where a freshly signed in user of role starts.
func LandingScreen(role types.Role) ui.Screen {
	switch role {
	case types.ROLE_DISABLED:
		return ui.ScreenSearch
	case types.ROLE_VOLUNTEER:
		return ui.ScreenTimetables
	}
	return ui.ScreenHome
}

func (f *AuthFlow) Login(ctx context.Context, email, password string) (types.Role, error) {
	res, err := f.api.Login(ctx, email, password)
	if err != nil {
		f.deps.Logger.Printf("Error logging in: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return "", err
	}

	f.mu.Lock()
	doc := f.pendingDocument
	f.pendingDocument = ""
	f.mu.Unlock()
	if doc != "" {
		if err := f.api.LinkDocumentToUser(ctx, doc); err != nil {
			f.deps.Logger.Printf("Error linking document %s: %s\n", doc, err.Error())
		}
	}

	f.deps.Speaker.Speak("Logged in.")
	f.deps.Navigator.Navigate(LandingScreen(res.Role))
	return res.Role, nil
}

func (f *AuthFlow) Signup(ctx context.Context, form SignupForm) error {
	_, err := f.api.Register(ctx, types.RegisterUserRequestBody{
		Name:          form.Name,
		Email:         form.Email,
		Password:      form.Password,
		HasDisability: form.HasDisability,
	})
	if err != nil {
		f.deps.Logger.Printf("Error signing up: %s\n", err.Error())
		f.deps.Alerter.Alert(AlertMessage(err))
		return err
	}
	if form.DocumentID != "" {
		f.mu.Lock()
		f.pendingDocument = form.DocumentID
		f.mu.Unlock()
	}
	f.deps.Alerter.Alert("Account created. Please log in.")
	f.deps.Navigator.Navigate(ui.ScreenLogin)
	return nil
}

// Logout always ends on the home screen; server errors are only logged.
func (f *AuthFlow) Logout(ctx context.Context) {
	if err := f.api.Logout(ctx); err != nil {
		f.deps.Logger.Printf("Error logging out: %s\n", err.Error())
	}
	f.deps.Navigator.Navigate(ui.ScreenHome)
}
