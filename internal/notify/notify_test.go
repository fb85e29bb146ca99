package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Envelope(t *testing.T) {
	m := Message{
		To:  []string{"a@x.test", "b@x.test"},
		Cc:  []string{"b@x.test", "c@x.test", ""},
		Bcc: []string{"d@x.test"},
	}
	assert.Equal(t, []string{"a@x.test", "b@x.test", "c@x.test", "d@x.test"}, m.Envelope())
	assert.Empty(t, Message{}.Envelope())
}

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func newTestSender(c *captured, sendErr error) *SMTPSender {
	s := NewSMTPSender(SMTPSettings{
		Host:     "smtp.example.test",
		Port:     587,
		Username: "bot@example.test",
		Password: "app-password",
	}, nil)
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, msg
		return sendErr
	}
	s.now = func() time.Time { return time.Date(2025, 3, 4, 16, 30, 0, 0, time.UTC) }
	return s
}

func TestSMTPSender_Send(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "positions.csv")
	require.NoError(t, os.WriteFile(attachment, []byte("symbol,shares\nQQQ,10\n"), 0o644))

	var c captured
	s := newTestSender(&c, nil)
	err := s.Send(context.Background(), Message{
		Subject:     "Daily Update",
		Body:        "=== Daily Summary ===\nAll quiet.\n",
		To:          []string{"me@example.test"},
		Cc:          []string{"cc@example.test"},
		Bcc:         []string{"hidden@example.test"},
		Attachments: []string{attachment, filepath.Join(dir, "missing.pdf")},
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.test:587", c.addr)
	assert.NotNil(t, c.auth)
	assert.Equal(t, "bot@example.test", c.from, "From defaults to username")
	assert.Equal(t, []string{"me@example.test", "cc@example.test", "hidden@example.test"}, c.to)

	parsed, err := mail.ReadMessage(bytes.NewReader(c.msg))
	require.NoError(t, err)
	assert.Equal(t, "me@example.test", parsed.Header.Get("To"))
	assert.Equal(t, "cc@example.test", parsed.Header.Get("Cc"))
	assert.Empty(t, parsed.Header.Get("Bcc"))
	assert.Equal(t, "Daily Update", parsed.Header.Get("Subject"))
	assert.True(t, strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.test>"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	text, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(text) // multipart.Reader decodes quoted-printable
	require.NoError(t, err)
	assert.Equal(t, "=== Daily Summary ===\nAll quiet.\n", strings.ReplaceAll(string(body), "\r\n", "\n"))

	att, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "positions.csv", att.FileName())
	assert.Equal(t, "base64", att.Header.Get("Content-Transfer-Encoding"))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF, "missing attachment is skipped")
}

func TestSMTPSender_NoRecipients(t *testing.T) {
	var c captured
	err := newTestSender(&c, nil).Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Nil(t, c.msg, "nothing sent")
}

func TestSMTPSender_TransportError(t *testing.T) {
	var c captured
	err := newTestSender(&c, errors.New("535 auth failed")).Send(context.Background(), Message{To: []string{"a@x.test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c captured
	err := newTestSender(&c, nil).Send(ctx, Message{To: []string{"a@x.test"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMTPSender_NoAuthWithoutUsername(t *testing.T) {
	var c captured
	s := newTestSender(&c, nil)
	s.settings.Username = ""
	s.settings.From = "digest@example.test"
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@x.test"}}))
	assert.Nil(t, c.auth)
}

func TestWriteBase64Lines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBase64Lines(&buf, bytes.Repeat([]byte("a"), 120)))
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSender(&buf)

	err := s.Send(context.Background(), Message{
		Subject:     "Swing book",
		Body:        "body\n",
		To:          []string{"a@x.test"},
		Bcc:         []string{"b@x.test"},
		Attachments: []string{"reports/positions_latest.csv"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "To: a@x.test\n")
	assert.Contains(t, out, "Bcc: b@x.test\n")
	assert.Contains(t, out, "Subject: Swing book\n")
	assert.Contains(t, out, "Attachment: reports/positions_latest.csv\n")
	assert.Contains(t, out, "\nbody\n")

	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipients)
}
