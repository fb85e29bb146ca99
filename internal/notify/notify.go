// Package notify delivers rendered reports. SMTPSender sends mail; WriterSender
// prints messages for dry runs.
package notify

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is one outbound report. Attachments are file paths.
type Message struct {
	Subject     string
	Body        string
	To          []string
	Cc          []string
	Bcc         []string
	Attachments []string
}

// Envelope returns every address the message is delivered to, To first,
// then Cc, then Bcc, with blanks and repeats dropped.
func (m Message) Envelope() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{m.To, m.Cc, m.Bcc} {
		for _, a := range list {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
