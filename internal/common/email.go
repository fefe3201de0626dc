package common

import (
	"fmt"
	"io"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(to, subject, body string) error
}

// InMemoryEmail provides a test-friendly email sender that records messages.
type InMemoryEmail struct {
	Outbox []Email
}

// Email represents a single email message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, Body: body})
	return nil
}

// ConsoleEmail writes outgoing mail to the provided writer. Used as the
// development backend when no SMTP relay is configured.
type ConsoleEmail struct {
	Out  io.Writer
	From string
}

// Send implements EmailSender.
func (c ConsoleEmail) Send(to, subject, body string) error {
	if c.Out == nil {
		return nil
	}
	_, err := fmt.Fprintf(c.Out, "From: %s\nTo: %s\nSubject: %s\n\n%s\n", c.From, to, subject, body)
	return err
}

// NopEmailSender implements EmailSender without performing any action.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
