package mailer

import (
	"accessbus/src/lib"
	"errors"
	"fmt"
	"log"
)

// Sender delivers a message. lib.SendMail is the default.
type Sender func(input *lib.SendMailInput) error

var send Sender = lib.SendMail

// NewSender replaces the delivery function, mainly for tests.
func NewSender(s Sender) {
	send = s
}

// NewMailerMessage sends input in the background. A disabled smtp setup is
// not treated as an error.
func NewMailerMessage(input *lib.SendMailInput) {
	go func() {
		if err := Deliver(input); err != nil {
			log.Printf("Error sending mail to %v: %s\n", input.To, err.Error())
		}
	}()
}

func Deliver(input *lib.SendMailInput) error {
	err := send(input)
	if errors.Is(err, lib.ErrMailDisabled) {
		log.Printf("Mail disabled, dropping %q for %v\n", input.Subject, input.To)
		return nil
	}
	return err
}

func PasswordChanged(name, email string) *lib.SendMailInput {
	return &lib.SendMailInput{
		FromName: "AccessBus",
		To:       []string{email},
		Subject:  "Your AccessBus password was changed",
		Body:     fmt.Sprintf("Hi %s,\n\nThe password for your AccessBus account was just changed. If this wasn't you, please contact support.\n", name),
	}
}

func VolunteerAttached(name, email string, reservationID uint, routeName string) *lib.SendMailInput {
	return &lib.SendMailInput{
		FromName: "AccessBus",
		To:       []string{email},
		Subject:  "A volunteer will meet you",
		Body:     fmt.Sprintf("Hi %s,\n\nA volunteer has joined your reservation #%d on route %s.\n", name, reservationID, routeName),
	}
}
