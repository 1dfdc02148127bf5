package notify

import (
	"context"
	"errors"
	"time"
)

// ErrTemplateRender is returned when a message template fails to execute
var ErrTemplateRender = errors.New("notify: template render failed")

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the SMTP connection settings
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Enabled reports whether enough settings are present to send mail
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// InviteVars are the variables for the invitation template
type InviteVars struct {
	UserEmail        string
	OrganizationName string
	Link             string
}

// PendingVars are the variables for the pending membership notice
type PendingVars struct {
	UserEmail        string
	UserName         string
	OrganizationName string
}
