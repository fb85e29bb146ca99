package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SMTPSettings configures an SMTPSender.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers messages through an SMTP relay. smtp.SendMail upgrades
// to STARTTLS when the server offers it.
type SMTPSender struct {
	settings SMTPSettings
	logger   logrus.FieldLogger
	send     sendFunc
	now      func() time.Time
}

// Ensure SMTPSender implements Sender at compile time.
var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTPSender. From defaults to Username.
func NewSMTPSender(settings SMTPSettings, logger logrus.FieldLogger) *SMTPSender {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if settings.From == "" {
		settings.From = settings.Username
	}
	return &SMTPSender{
		settings: settings,
		logger:   logger,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

// Send delivers msg. Missing attachments are skipped with a warning.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpts := msg.Envelope()
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}

	raw, err := BuildMIME(s.settings.From, msg, s.now(), messageID(s.settings.From), s.logger)
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
	}
	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))
	if err := s.send(addr, auth, s.settings.From, rcpts, raw); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "<> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// BuildMIME assembles a multipart/mixed message: a quoted-printable text part
// followed by one base64 part per readable attachment. Bcc is never written.
func BuildMIME(from string, msg Message, date time.Time, msgID string, logger logrus.FieldLogger) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	hdr("From", from)
	if len(msg.To) > 0 {
		hdr("To", strings.Join(msg.To, ", "))
	}
	if len(msg.Cc) > 0 {
		hdr("Cc", strings.Join(msg.Cc, ", "))
	}
	hdr("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	hdr("Date", date.Format(time.RFC1123Z))
	hdr("Message-ID", msgID)
	hdr("MIME-Version", "1.0")
	hdr("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	tw, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(tw)
	if _, err := qp.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	for _, path := range msg.Attachments {
		data, err := os.ReadFile(path) // #nosec G304 -- attachment paths come from the operator's group config
		if errors.Is(err, fs.ErrNotExist) {
			logger.WithField("attachment", path).Warn("attachment not found; skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading attachment %s: %w", path, err)
		}

		name := filepath.Base(path)
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", ctype)
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		aw, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(aw, data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines writes data as base64 wrapped at 76 columns.
func writeBase64Lines(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := io.WriteString(w, enc[:76]+"\r\n"); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := io.WriteString(w, enc+"\r\n")
	return err
}
