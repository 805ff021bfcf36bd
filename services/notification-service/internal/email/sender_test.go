package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("shop@example.com", "c1@example.com", "Order Confirmation", "line one\nline two")

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, ok)
	assert.Contains(t, head, "From: shop@example.com")
	assert.Contains(t, head, "To: c1@example.com")
	assert.Contains(t, head, "Subject: Order Confirmation")
	assert.Equal(t, "line one\r\nline two\r\n", body)
}

func TestNewSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: " mailpit ", Port: "1025"})
	assert.Equal(t, "mailpit:1025", s.addr)
	assert.Equal(t, "no-reply@ordersaga.local", s.from)
	assert.Nil(t, s.auth)

	s = NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "587", Username: "u", Password: "p"})
	assert.NotNil(t, s.auth)
}
