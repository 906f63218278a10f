package service

import (
	"bytes"
	"context"
	"html/template"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/room-booking/internal/config"
)

// Mailer delivers an HTML e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// OTPSender delivers a one-time sign-in code to a phone number.
type OTPSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// SMTPMailer sends through an SMTP relay with gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns an SMTPMailer, or a LogMailer when no SMTP host is
// configured.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes the message to the process log.  Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail: to=%s subject=%q (smtp disabled)", to, subject)
	return nil
}

// LogOTPSender writes the code to the process log.  Used in development.
type LogOTPSender struct{}

func (LogOTPSender) SendCode(_ context.Context, phone, code string) error {
	log.Printf("otp: code for %s is %s", phone, code)
	return nil
}

var resetTemplate = template.Must(template.New("reset").Parse(`<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Someone asked to reset the password of your room booking account.</p>
<p><a href="{{.Link}}">Choose a new password</a>. The link expires in {{.TTL}}.</p>
<p>If this was not you, ignore this e-mail.</p>`))

func renderReset(name, link, ttl string) (string, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, struct{ Name, Link, TTL string }{name, link, ttl})
	return buf.String(), err
}
