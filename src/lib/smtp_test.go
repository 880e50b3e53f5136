package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg, err := BuildMessage(&SendMailInput{
		From:     "noreply@accessbus.example",
		FromName: "AccessBus",
		To:       []string{"rider@example.com"},
		Subject:  "Your password was changed",
		Body:     "hello",
	})
	assert.Nil(t, err)
	assert.Equal(t, []string{"Your password was changed"}, msg.GetGenHeader("Subject"))
	assert.Len(t, msg.GetToString(), 1)
}

func TestBuildMessageInvalidRecipient(t *testing.T) {
	_, err := BuildMessage(&SendMailInput{
		From: "noreply@accessbus.example",
		To:   []string{"not-an-address"},
	})
	assert.NotNil(t, err)
}

func TestSendMailDisabled(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	err := SendMail(&SendMailInput{To: []string{"rider@example.com"}})
	assert.ErrorIs(t, err, ErrMailDisabled)
}
