// Package mailer sends account notification emails over SMTP.
package mailer

import (
	"errors"
	"fmt"

	"github.com/alva-alumni/apiserver/config"
	"gopkg.in/gomail.v2"
)

// Dialer delivers composed messages.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	dialer Dialer
	from   string
	admin  string
}

// New builds a Mailer from SMTP settings.
func New(cfg config.SMTPConfig) (*Mailer, error) {
	switch {
	case cfg.Host == "":
		return nil, errors.New("SMTP_HOST is required")
	case cfg.From == "":
		return nil, errors.New("SMTP_FROM is required")
	}
	return NewWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.AdminEmail), nil
}

func NewWithDialer(d Dialer, from, admin string) *Mailer {
	return &Mailer{dialer: d, from: from, admin: admin}
}

// Email is a plain-text message with an optional HTML alternative.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return errors.New("no recipients specified")
	}
	return m.dialer.DialAndSend(m.compose(email))
}

// NotifyAdmin tells the administrator that an account awaits approval.
// It does nothing when no admin address is configured.
func (m *Mailer) NotifyAdmin(name, email string) error {
	if m.admin == "" {
		return nil
	}
	return m.Send(Email{
		To:      []string{m.admin},
		Subject: "New alumni registration awaiting approval",
		Body: fmt.Sprintf(
			"%s <%s> has registered and is waiting for approval.\n\nApprove with: alumni approve %s\n",
			name, email, email,
		),
	})
}

// NotifyApproved tells an alumnus their account can now sign in.
func (m *Mailer) NotifyApproved(name, email string) error {
	return m.Send(Email{
		To:       []string{email},
		Subject:  "Your alumni account has been approved",
		Body:     fmt.Sprintf("Hi %s,\n\nYour account has been approved. You can now log in.\n", name),
		HTMLBody: fmt.Sprintf("<p>Hi %s,</p><p>Your account has been approved. You can now log in.</p>", name),
	})
}

func (m *Mailer) compose(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody == "" {
		msg.SetBody("text/plain", email.Body)
		return msg
	}
	msg.SetBody("text/plain", email.Body)
	msg.AddAlternative("text/html", email.HTMLBody)
	return msg
}
