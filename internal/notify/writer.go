package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// WriterSender prints messages instead of sending them.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// Ensure WriterSender implements Sender at compile time.
var _ Sender = (*WriterSender)(nil)

// NewWriterSender creates a WriterSender writing to w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// Send writes the envelope and body of msg.
func (s *WriterSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Envelope()) == 0 {
		return ErrNoRecipients
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&sb, "Cc: %s\n", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&sb, "Bcc: %s\n", strings.Join(msg.Bcc, ", "))
	}
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	for _, a := range msg.Attachments {
		fmt.Fprintf(&sb, "Attachment: %s\n", a)
	}
	sb.WriteString("\n")
	sb.WriteString(msg.Body)
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	_, err := io.WriteString(s.w, sb.String())
	return err
}
