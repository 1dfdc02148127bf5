package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/platinummonkey/ssomap/pkg/observability"
)

// SMTPSender implements Sender over SMTP
type SMTPSender struct {
	config SMTPConfig
	send   func(d *mail.Dialer, m *mail.Message) error
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.TLSMode == "" {
		config.TLSMode = "auto"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SMTPSender{
		config: config,
		send: func(d *mail.Dialer, m *mail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

// Send delivers msg. The dial timeout is the smaller of the configured
// timeout and the time left on ctx.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "smtp_sender",
		"host":      s.config.Host,
		"to":        msg.To,
	})

	m := s.buildMessage(msg)
	d := s.dialer(ctx)

	if err := s.send(d, m); err != nil {
		logger.WithError(err).Error("smtp send failed")
		return fmt.Errorf("smtp send: %w", err)
	}

	logger.Debug("email sent")
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text == "" {
			m.SetBody("text/html", msg.HTML)
		} else {
			m.AddAlternative("text/html", msg.HTML)
		}
	}
	return m
}

func (s *SMTPSender) dialer(ctx context.Context) *mail.Dialer {
	d := mail.NewDialer(s.config.Host, s.config.Port, s.config.Username, s.config.Password)
	d.Timeout = s.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d.Timeout {
			d.Timeout = left
		}
	}

	d.TLSConfig = &tls.Config{
		ServerName:         s.config.Host,
		InsecureSkipVerify: s.config.InsecureSkipVerify,
	}
	switch s.config.TLSMode {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.SSL = false
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}
	return d
}
