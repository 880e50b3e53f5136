package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{},
		&AccessibilityRequirement{},
		&Reservation{},
		&VolunteerReservation{},
		&Document{},
		&Token{},
		&Notification{},
	}
}
