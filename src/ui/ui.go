// Package ui declares the collaborators the client core drives. Rendering
// lives behind these interfaces.
package ui

import "context"

type Screen string

const (
	ScreenHome               Screen = "Home"
	ScreenLogin              Screen = "Login"
	ScreenSignup             Screen = "Signup"
	ScreenSearch             Screen = "Search"
	ScreenTimetables         Screen = "Timetables"
	ScreenConfirmed          Screen = "Confirmed"
	ScreenVolunteerList      Screen = "VolunteerList"
	ScreenVolunteerConfirmed Screen = "VolunteerConfirmed"
	ScreenSettings           Screen = "Settings"
	ScreenProfile            Screen = "Profile"
	ScreenDisability         Screen = "Disability"
	ScreenAccessibility      Screen = "Accessibility"
	ScreenHelp               Screen = "Help"
)

type Navigator interface {
	Navigate(screen Screen)
}

type Alerter interface {
	Alert(message string)
}

// LocationProvider reports the device position. ok is false when no fix is
// available, which is not an error.
type LocationProvider interface {
	Location(ctx context.Context) (lat, lon float64, ok bool, err error)
}

type Speaker interface {
	Speak(text string)
}

// Discard implements every collaborator and does nothing.
type Discard struct{}

func (Discard) Navigate(Screen) {}
func (Discard) Alert(string)    {}
func (Discard) Speak(string)    {}
func (Discard) Location(context.Context) (float64, float64, bool, error) {
	return 0, 0, false, nil
}
